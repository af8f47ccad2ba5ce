package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsum-backend/internal/analysis"
	"docsum-backend/internal/extract"
	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/metrics"
	"docsum-backend/internal/shared/storage/object"
	"docsum-backend/internal/shared/telemetry"
	"docsum-backend/internal/shared/util"
)

// DefaultPresignTTL is used when Service.PresignTTL is unset.
const DefaultPresignTTL = time.Hour

// BlobStore persists raw file bytes.
type BlobStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (object.Ref, error)
	ReadAll(ctx context.Context, ref object.Ref) ([]byte, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// TextExtractor turns stored bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Analyzer produces a structured analysis for extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (analysis.Result, error)
}

// Service coordinates storage, extraction and analysis for documents.
type Service struct {
	Store     BlobStore
	Repo      Repo
	Extractor TextExtractor
	Analyzer  Analyzer
	// Guard throttles read-path analysis retries. Nil disables it.
	Guard      *FillGuard
	PresignTTL time.Duration
	// BrowserLink builds a console link for an object key. Optional.
	BrowserLink func(key string) string

	Now   func() time.Time
	NewID func() string
}

// Upload is one file submitted for creation.
type Upload struct {
	FileName string
	MimeType string
	Data     []byte
}

// CreateResult is the outcome for one upload. A result with a Document and an
// Err is a partial success: the record exists but extraction failed.
type CreateResult struct {
	Document Document
	Err      error
}

// Created reports whether a record was written.
func (r CreateResult) Created() bool {
	return r.Document.ID != ""
}

// Partial reports a created record whose enrichment failed.
func (r CreateResult) Partial() bool {
	return r.Created() && r.Err != nil
}

// ReadInfo carries access links computed for a read. Both are best effort.
type ReadInfo struct {
	SignedURL  string
	BrowserURL string
}

// CreateDocument creates a single document.
func (s *Service) CreateDocument(ctx context.Context, up Upload) (Document, error) {
	res := s.CreateDocuments(ctx, []Upload{up})[0]
	return res.Document, res.Err
}

// CreateDocuments validates, stores, records and extracts each upload in turn.
func (s *Service) CreateDocuments(ctx context.Context, uploads []Upload) []CreateResult {
	out := make([]CreateResult, 0, len(uploads))
	for _, up := range uploads {
		out = append(out, s.createOne(ctx, up))
	}
	return out
}

func (s *Service) createOne(ctx context.Context, up Upload) CreateResult {
	const op = "documents.create"

	mimeType := ResolveMimeType(up.FileName, up.MimeType, up.Data)
	if !SupportedMimeType(mimeType) {
		metrics.IncUploadRejected()
		return CreateResult{Err: apperr.Validation(op, MsgUnsupportedType)}
	}
	if len(up.Data) > MaxUploadBytes {
		metrics.IncUploadRejected()
		return CreateResult{Err: apperr.Validation(op, MsgTooLarge)}
	}

	ref, err := s.Store.Save(ctx, up.FileName, bytes.NewReader(up.Data))
	if err != nil {
		return CreateResult{Err: err}
	}

	now := s.now()
	doc := Document{
		ID:        s.newID(),
		FileName:  up.FileName,
		SizeBytes: int64(len(up.Data)),
		MimeType:  mimeType,
		Ref:       ref,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return CreateResult{Err: err}
	}
	metrics.IncUploadAccepted()
	telemetry.Info("documents.created", map[string]any{
		"document_id": doc.ID,
		"mime_type":   mimeType,
		"size":        doc.SizeBytes,
		"storage":     string(ref.Kind),
		"sha256":      util.ContentDigest(up.Data),
	})

	text, err := s.Extractor.Extract(ctx, up.Data, mimeType)
	if err != nil {
		metrics.IncExtractionFailed()
		telemetry.Error("documents.create.extract", map[string]any{
			"document_id": doc.ID,
			"err":         err,
		})
		return CreateResult{Document: doc, Err: err}
	}
	if text != "" {
		at := s.now()
		if err := s.Repo.UpdateExtractedText(ctx, doc.ID, text, at); err != nil {
			telemetry.Error("documents.create.persist_text", map[string]any{
				"document_id": doc.ID,
				"err":         err,
			})
			return CreateResult{Document: doc, Err: err}
		}
		doc.ExtractedText = &text
		doc.UpdatedAt = at
	}
	return CreateResult{Document: doc}
}

// EnsureExtracted fills in missing text from the stored bytes. Present text is
// never replaced.
func (s *Service) EnsureExtracted(ctx context.Context, doc *Document) error {
	const op = "documents.ensure_extracted"
	if doc.HasText() {
		return nil
	}
	if doc.Ref.IsZero() {
		return apperr.Conflict(op, MsgNoSource)
	}

	data, err := s.Store.ReadAll(ctx, doc.Ref)
	if err != nil {
		return err
	}
	text, err := s.Extractor.Extract(ctx, data, doc.MimeType)
	if err != nil {
		metrics.IncExtractionFailed()
		return err
	}
	if strings.TrimSpace(text) == "" {
		metrics.IncExtractionFailed()
		return apperr.Extraction(op, errors.New("no text extracted"))
	}

	at := s.now()
	if err := s.Repo.UpdateExtractedText(ctx, doc.ID, text, at); err != nil {
		return err
	}
	doc.ExtractedText = &text
	doc.UpdatedAt = at
	return nil
}

// EnsureAnalyzed fills in a missing analysis. A present, non-empty analysis is
// left untouched.
func (s *Service) EnsureAnalyzed(ctx context.Context, doc *Document) error {
	const op = "documents.ensure_analyzed"
	if doc.HasAnalysis() {
		return nil
	}
	if !doc.HasText() {
		return apperr.Conflict(op, "Document text not extracted")
	}
	return s.analyzeAndStore(ctx, doc)
}

// ReadDocument returns the record after a best-effort fill of missing fields.
// Only lookup failures are returned.
func (s *Service) ReadDocument(ctx context.Context, id string) (Document, ReadInfo, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, ReadInfo{}, err
	}
	info := s.AccessLinks(ctx, doc)

	if err := s.EnsureExtracted(ctx, &doc); err != nil {
		telemetry.Warn("documents.read.extract", map[string]any{
			"document_id": doc.ID,
			"err":         err,
		})
	}

	if doc.HasText() && !doc.HasAnalysis() {
		if !s.Guard.Allow(doc.ID) {
			metrics.IncReadAnalysisSkipped()
			return doc, info, nil
		}
		if err := s.EnsureAnalyzed(ctx, &doc); err != nil {
			telemetry.Warn("documents.read.analyze", map[string]any{
				"document_id": doc.ID,
				"err":         err,
			})
		} else {
			s.Guard.Forget(doc.ID)
		}
	}
	return doc, info, nil
}

// AnalyzeOnDemand always runs a fresh analysis, extracting text first when
// needed. Every failure is returned.
func (s *Service) AnalyzeOnDemand(ctx context.Context, id string) (Document, error) {
	const op = "documents.analyze"
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}

	if !doc.HasText() {
		if doc.Ref.IsZero() {
			return Document{}, apperr.Conflict(op, MsgNoSource)
		}
		if err := s.EnsureExtracted(ctx, &doc); err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindExtraction, apperr.KindConflict, apperr.KindUnavailable:
				return Document{}, err
			default:
				return Document{}, apperr.Extraction(op, err)
			}
		}
	}

	if err := s.analyzeAndStore(ctx, &doc); err != nil {
		return Document{}, err
	}
	s.Guard.Forget(doc.ID)
	return doc, nil
}

// List returns documents newest first. limit <= 0 lists everything.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.Repo.List(ctx, limit, offset)
}

// AccessLinks computes a signed URL and console link for object-stored
// documents. Failures are logged and leave the fields empty.
func (s *Service) AccessLinks(ctx context.Context, doc Document) ReadInfo {
	var info ReadInfo
	if doc.Ref.Kind != object.KindObject || doc.Ref.Key == "" {
		return info
	}
	ttl := s.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	signed, err := s.Store.Presign(ctx, doc.Ref.Key, ttl)
	if err != nil {
		telemetry.Warn("documents.presign", map[string]any{
			"document_id": doc.ID,
			"err":         err,
		})
	} else {
		info.SignedURL = signed
	}
	if s.BrowserLink != nil {
		info.BrowserURL = s.BrowserLink(doc.Ref.Key)
	}
	return info
}

func (s *Service) analyzeAndStore(ctx context.Context, doc *Document) error {
	metrics.IncAnalysisStarted()
	start := time.Now()
	res, err := s.Analyzer.Analyze(ctx, doc.Text())
	metrics.ObserveAnalysisDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncAnalysisFailed()
		return err
	}
	metrics.IncAnalysisCompleted()

	at := s.now()
	if err := s.Repo.UpdateAnalysis(ctx, doc.ID, res, at); err != nil {
		return err
	}
	doc.Analysis = &res
	doc.UpdatedAt = at
	telemetry.Info("documents.analyzed", map[string]any{
		"document_id":   doc.ID,
		"document_type": res.DocumentType,
	})
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// ResolveMimeType normalizes the declared type and infers PDF or DOCX from the
// file extension when the declared type is missing or generic.
func ResolveMimeType(fileName, declared string, data []byte) string {
	mimeType := extract.NormalizeMimeType(declared, data)
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return extract.MimePDF
	case ".docx":
		return extract.MimeDOCX
	}
	return mimeType
}

// SupportedMimeType reports whether mimeType is PDF or DOCX.
func SupportedMimeType(mimeType string) bool {
	return mimeType == extract.MimePDF || mimeType == extract.MimeDOCX
}
