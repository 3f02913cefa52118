package domain

// MetadataTextKey is the metadata field holding the raw text of a stored
// document. The ingest path writes it and the query path reads it back to
// assemble generation context.
const MetadataTextKey = "text"

// Document is a unit of ingestion: the text to embed plus arbitrary
// metadata supplied by the caller (title, source, document id, ...).
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorRecord is a stored vector with its metadata payload.
type VectorRecord struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is one similarity-search hit. Score is normalized so that
// higher means more similar, regardless of the backend's native metric.
type SearchResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RAGResult is the outcome of one retrieval-augmented query. Sources keep
// the store's descending-score order; the orchestrator never re-sorts them.
type RAGResult struct {
	Query    string         `json:"query"`
	Response string         `json:"response"`
	Sources  []SearchResult `json:"sources"`
}
