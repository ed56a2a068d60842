package store

import "time"

// PrecedentRecord is an indexed court decision.
type PrecedentRecord struct {
	ID              int64
	DocID           string
	PrecID          string
	CaseNo          string
	CaseName        string
	Court           string
	DecisionDate    string
	DecisionDateISO string
	Source          string
	Body            string
	Hash            string
	Summary         string
	IndexedAt       time.Time
}

// Chunk is one embedded window of a precedent's text.
type Chunk struct {
	ID          int64
	UUID        string
	PrecedentID int64
	Index       int
	Content     string
	Metadata    string
}

// PrecedentSummary is a lightweight precedent row for listings and
// overview generation.
type PrecedentSummary struct {
	DocID           string
	PrecID          string
	CaseNo          string
	CaseName        string
	Court           string
	DecisionDateISO string
	Chunks          int
	Summary         string
}

// ListFilter narrows ListPrecedents. Zero values match everything.
type ListFilter struct {
	// Court matches as a substring of the court name.
	Court string
	// Since keeps decisions on or after this ISO date.
	Since string
	Limit int
}

// SearchResult is a chunk with the precedent it belongs to. Distance is the
// vector distance, or 0 for keyword matches.
type SearchResult struct {
	Chunk     Chunk
	Precedent PrecedentSummary
	Distance  float64
	Keyword   bool
}
