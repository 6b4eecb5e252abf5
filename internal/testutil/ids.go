package testutil

// FixedIDGenerator generates the same request ID every time.
//
// This enables deterministic URLs in transport tests and golden output.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id.
//
// If id is empty, Generate() returns "test-request-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed request ID.
//
// Implements transport.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
