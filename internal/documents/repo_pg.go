package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docsum-backend/internal/analysis"
	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/storage/db"
	"docsum-backend/internal/shared/storage/object"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, filename, size, mime_type, local_path, s3_key, s3_url, extracted_text, analysis, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (` + documentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var localPath, s3Key, s3URL sql.NullString
	switch doc.Ref.Kind {
	case object.KindLocal:
		localPath = nullString(doc.Ref.Path)
	case object.KindObject:
		s3Key = nullString(doc.Ref.Key)
		s3URL = nullString(doc.Ref.URL)
	}

	var text sql.NullString
	if doc.ExtractedText != nil {
		text = sql.NullString{String: *doc.ExtractedText, Valid: true}
	}
	analysisJSON, err := encodeAnalysis(doc.Analysis)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.FileName,
		doc.SizeBytes,
		doc.MimeType,
		localPath,
		s3Key,
		s3URL,
		text,
		analysisJSON,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return translate("documents.create", err)
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, translate("documents.get", err)
	}
	return doc, nil
}

// List lists documents newest-first. A non-positive limit lists everything.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if offset < 0 {
		offset = 0
	}
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	const query = `
SELECT ` + documentColumns + `
FROM documents
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, lim, offset)
	if err != nil {
		return nil, translate("documents.list", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, translate("documents.list", err)
		}
		out = append(out, doc)
	}
	return out, translate("documents.list", rows.Err())
}

// UpdateExtractedText stores extracted text and bumps updated_at.
func (r *PGRepo) UpdateExtractedText(ctx context.Context, id, text string, at time.Time) error {
	const query = `
UPDATE documents
SET extracted_text = $1, updated_at = $2
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, text, at, id)
	if err != nil {
		return translate("documents.update_text", err)
	}
	return requireRow(res)
}

// UpdateAnalysis stores the analysis result and bumps updated_at.
func (r *PGRepo) UpdateAnalysis(ctx context.Context, id string, result analysis.Result, at time.Time) error {
	const query = `
UPDATE documents
SET analysis = $1, updated_at = $2
WHERE id = $3`
	payload, err := encodeAnalysis(&result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, payload, at, id)
	if err != nil {
		return translate("documents.update_analysis", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var localPath, s3Key, s3URL, text sql.NullString
	var analysisRaw []byte
	if err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.SizeBytes,
		&doc.MimeType,
		&localPath,
		&s3Key,
		&s3URL,
		&text,
		&analysisRaw,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}

	switch {
	case localPath.Valid:
		doc.Ref = object.Ref{Kind: object.KindLocal, Path: localPath.String}
	case s3Key.Valid:
		doc.Ref = object.Ref{Kind: object.KindObject, Key: s3Key.String, URL: s3URL.String}
	}
	if text.Valid {
		t := text.String
		doc.ExtractedText = &t
	}
	res, err := decodeAnalysis(analysisRaw)
	if err != nil {
		return Document{}, fmt.Errorf("decode analysis for %s: %w", doc.ID, err)
	}
	doc.Analysis = res
	return doc, nil
}

// decodeAnalysis treats NULL, JSON null and an object without keys as no
// analysis.
func decodeAnalysis(raw []byte) (*analysis.Result, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	var res analysis.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func encodeAnalysis(res *analysis.Result) (sql.NullString, error) {
	if res == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode analysis: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// translate maps a refused connection to the unavailable kind.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsConnRefused(err) {
		return apperr.Unavailable(op, MsgDBUnavailable, err)
	}
	return err
}

var _ Repo = (*PGRepo)(nil)
