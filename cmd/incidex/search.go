package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	dominc "github.com/kailas-cloud/incidex/internal/domain/incident"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
	incidentuc "github.com/kailas-cloud/incidex/internal/usecase/incident"
)

var (
	searchContainer string
	searchTitle     string
	searchSummary   string
	searchField     string
	searchLimit     int
	searchFilter    string
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Find stored incidents similar to a title/summary or to free text",
	Long: `Without arguments, ranks incidents by weighted title and summary similarity
to --title and --summary. With a text argument, searches a single field (--field).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), globalCfg, globalEnv)
		if err != nil {
			return err
		}
		defer a.Close()

		var hits []domsearch.Hit[dominc.Incident]
		if len(args) == 1 {
			hits, err = a.incidents.SearchText(cmd.Context(), searchContainer, searchField, args[0], searchLimit)
		} else {
			var res *incidentuc.SimilarResult
			res, err = a.incidents.SearchSimilar(cmd.Context(), incidentuc.SimilarParams{
				Incident:   &dominc.Incident{Title: searchTitle, Summary: searchSummary},
				Container:  searchContainer,
				MaxResults: searchLimit,
				Filter:     searchFilter,
			})
			if res != nil {
				hits = res.Hits
			}
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintln(out, "No similar incidents")
			return nil
		}
		for i, h := range hits {
			fmt.Fprintf(out, "%d. %-12s score=%s sev=%d %s\n",
				i+1, h.Item.IncidentID, humanize.FtoaWithDigits(h.Score, 4), h.Item.Severity, oneLine(h.Item.Title))
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchContainer, "collection", "", "container to search (default from config)")
	f.StringVar(&searchTitle, "title", "", "title of the template incident")
	f.StringVar(&searchSummary, "summary", "", "summary of the template incident")
	f.StringVar(&searchField, "field", "summary", "field for free-text search: title or summary")
	f.IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	f.StringVar(&searchFilter, "where", "", "WHERE clause over c, e.g. \"c.Severity <= 2\"")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
