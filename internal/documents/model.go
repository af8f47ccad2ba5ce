package documents

import (
	"time"

	"docsum-backend/internal/analysis"
	"docsum-backend/internal/shared/storage/object"
)

// Document is an uploaded file plus whatever has been derived from it so far.
type Document struct {
	ID            string
	FileName      string
	SizeBytes     int64
	MimeType      string
	Ref           object.Ref
	ExtractedText *string
	Analysis      *analysis.Result
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasText reports whether non-empty extracted text is recorded.
func (d Document) HasText() bool {
	return d.ExtractedText != nil && *d.ExtractedText != ""
}

// HasAnalysis reports whether a non-empty analysis is recorded.
func (d Document) HasAnalysis() bool {
	return !d.Analysis.IsEmpty()
}

// Text returns the extracted text or "".
func (d Document) Text() string {
	if d.ExtractedText == nil {
		return ""
	}
	return *d.ExtractedText
}
