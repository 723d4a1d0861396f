package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// MetadataGenerator derives descriptive text fields from a segment's content.
// Both derivations are best-effort: a failure leaves the corresponding field
// empty and never fails the segment. Implementations must be thread-safe.
type MetadataGenerator interface {
	// Summarize produces a short summary of the text.
	Summarize(ctx context.Context, text string) (string, error)

	// RetrievalContext produces a context description of the text with the
	// key words and topics that make it findable by semantic search.
	RetrievalContext(ctx context.Context, text string) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and MetadataGenerator
// instances, ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// MetadataGenerator returns the summary/retrieval-context service.
	// The returned MetadataGenerator is safe for concurrent use.
	MetadataGenerator() MetadataGenerator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
