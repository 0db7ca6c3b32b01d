package model

import "time"

// SearchMode selects how a query is dispatched across a project's files.
type SearchMode string

const (
	// SearchPerFile issues one provider query per target file.
	SearchPerFile SearchMode = "per_file"
	// SearchPooled issues a single store-wide query when no subset is named.
	SearchPooled SearchMode = "pooled"
)

// SearchQuery is a natural-language query against a project.
type SearchQuery struct {
	ProjectID string
	Query     string
	// Filenames restricts the search to a subset; empty means every recorded file.
	Filenames []string
	Mode      SearchMode
}

// Citation points at the source passage that grounded an answer.
type Citation struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
	Text  string `json:"text,omitempty"`
}

// SearchResult is the answer for one target file, or for the whole project.
type SearchResult struct {
	Filename  string     `json:"filename"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	// Matched is false when the provider answered with no text and no citations.
	Matched bool `json:"matched"`
}

// Search outcomes stored with each history record.
const (
	SearchOK       = "ok"
	SearchRejected = "rejected"
	SearchNotFound = "not_found"
	SearchFailed   = "provider_error"
)

// SearchRecord is one entry of a project's search history.
type SearchRecord struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Query       string     `json:"query"`
	Mode        SearchMode `json:"mode"`
	Targets     int        `json:"targets"`
	ResultCount int        `json:"result_count"`
	Outcome     string     `json:"outcome"`
	CreatedAt   time.Time  `json:"created_at"`
}
