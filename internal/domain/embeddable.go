package domain

// EmbeddingField is one text field of a record paired with the vector field it feeds.
type EmbeddingField struct {
	Name string // vector field name as stored
	Text string
	Get  func() []float32
	Set  func([]float32)
}

// Embeddable is implemented by records that carry text fields to embed.
// Every record of one type must return its fields in the same order.
type Embeddable interface {
	Key() string
	EmbeddingFields() []EmbeddingField
}
