package index

// Document is the stored form of one indexed input. It is immutable once the
// index that holds it has been built.
type Document struct {
	ID         uint32 `json:"id"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Size       int64  `json:"size"`
	TokenCount int    `json:"tokens"`
}
