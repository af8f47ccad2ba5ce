package analysis

// Result is the structured summary produced for a document.
type Result struct {
	Summary      string         `json:"summary"`
	DocumentType string         `json:"document_type"`
	Attributes   map[string]any `json:"attributes"`
}

// IsEmpty reports whether no result was recorded. A stored result with blank
// fields still counts as present.
func (r *Result) IsEmpty() bool {
	return r == nil
}
