// Package proto defines the request and response messages shared by the
// command-line contract, the HTTP API and the JSON-over-TCP RPC layer (see
// pkg/grpc). Every transport encodes the same structs, so a client sees
// identical payloads whichever boundary it crosses.
package proto

// Query modes.
const (
	ModeExact        = "exact"
	ModePrefix       = "prefix"
	ModeAutocomplete = "autocomplete"
)

// ---------- Search ----------

// SearchRequest is the input to exact and prefix search. Zero values for
// Page, TopK and ExpandLimit select the configured defaults.
type SearchRequest struct {
	Query       string `json:"query"`
	Mode        string `json:"mode"`
	Page        int    `json:"page,omitempty"`
	TopK        int    `json:"topK,omitempty"`
	ExpandLimit int    `json:"expandLimit,omitempty"`
}

// SearchResult is a single ranked document on a page.
type SearchResult struct {
	Rank             int     `json:"rank"`
	Filename         string  `json:"filename"`
	Filepath         string  `json:"filepath"`
	Score            float64 `json:"score"`
	Snippet          string  `json:"snippet"`
	TotalOccurrences int     `json:"totalOccurrences"`
	InTitle          bool    `json:"inTitle"`
	ExactPhraseMatch bool    `json:"exactPhraseMatch"`
}

// SearchResponse is one page of ranked results.
type SearchResponse struct {
	Query          string         `json:"query,omitempty"`
	Prefix         string         `json:"prefix,omitempty"`
	Mode           string         `json:"mode"`
	Results        []SearchResult `json:"results"`
	Count          int            `json:"count"`
	TotalResults   int            `json:"total_results"`
	TotalPages     int            `json:"total_pages"`
	Page           int            `json:"page"`
	ResultsPerPage int            `json:"results_per_page"`
	NextPage       *int           `json:"next_page,omitempty"`
	PrevPage       *int           `json:"prev_page,omitempty"`
	ExpandedTerms  []string       `json:"expanded_terms,omitempty"`
	TimeMS         float64        `json:"time_ms"`
}

// ---------- Autocomplete ----------

// AutocompleteRequest asks for up to Limit completions of Prefix.
type AutocompleteRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit,omitempty"`
}

// AutocompleteResponse lists completions by descending frequency.
type AutocompleteResponse struct {
	Prefix      string   `json:"prefix"`
	Suggestions []string `json:"suggestions"`
	Count       int      `json:"count"`
	TimeMS      float64  `json:"time_ms"`
}

// ---------- Status ----------

// StatusRequest has no fields; it exists so every RPC takes a message.
type StatusRequest struct{}

// StatusResponse describes the published index.
type StatusResponse struct {
	Status            string `json:"status"`
	Documents         int    `json:"documents"`
	UniqueTerms       int    `json:"unique_terms"`
	DataDirectory     string `json:"data_directory"`
	TotalWordsIndexed int64  `json:"total_words_indexed"`
	BuildID           string `json:"build_id"`
	BuiltAt           string `json:"built_at"`
}

// ---------- Admin ----------

// ReloadResponse confirms a rebuild.
type ReloadResponse struct {
	Success bool   `json:"success"`
	BuildID string `json:"build_id,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed HTTP request and the RPC error
// payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
