package documents

import (
	"time"

	"docsum-backend/internal/shared/storage/object"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	FileInfo FileInfo          `json:"file_info"`
	Metadata Metadata          `json:"metadata"`
	Analysis *AnalysisResponse `json:"analysis"`
}

type FileInfo struct {
	ID           string    `json:"id"`
	FileName     string    `json:"filename"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	S3URL        *string   `json:"s3_url"`
	S3Key        *string   `json:"s3_key"`
	S3SignedURL  *string   `json:"s3_signed_url,omitempty"`
	S3BrowserURL *string   `json:"s3_browser_url,omitempty"`
	LocalPath    *string   `json:"local_path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Metadata struct {
	ExtractedText *string `json:"extracted_text"`
}

// AnalysisResponse echoes the document MIME type next to the result.
type AnalysisResponse struct {
	Summary      string         `json:"summary"`
	DocumentType string         `json:"document_type"`
	Attributes   map[string]any `json:"attributes"`
	MimeType     string         `json:"mime_type"`
}

func toResponse(doc Document, info ReadInfo) DocumentResponse {
	fi := FileInfo{
		ID:           doc.ID,
		FileName:     doc.FileName,
		Size:         doc.SizeBytes,
		MimeType:     doc.MimeType,
		S3SignedURL:  optional(info.SignedURL),
		S3BrowserURL: optional(info.BrowserURL),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	switch doc.Ref.Kind {
	case object.KindLocal:
		fi.LocalPath = optional(doc.Ref.Path)
	case object.KindObject:
		fi.S3Key = optional(doc.Ref.Key)
		fi.S3URL = optional(doc.Ref.URL)
	}

	resp := DocumentResponse{
		FileInfo: fi,
		Metadata: Metadata{ExtractedText: doc.ExtractedText},
	}
	if doc.Analysis != nil {
		attrs := doc.Analysis.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		resp.Analysis = &AnalysisResponse{
			Summary:      doc.Analysis.Summary,
			DocumentType: doc.Analysis.DocumentType,
			Attributes:   attrs,
			MimeType:     doc.MimeType,
		}
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
