package documents

import "docsum-backend/internal/shared/apperr"

// MaxUploadBytes caps a single uploaded file.
const MaxUploadBytes = 5 << 20

const (
	MsgNotFound        = "Document not found"
	MsgUnsupportedType = "File must be PDF or DOCX"
	MsgTooLarge        = "File size exceeds 5MB"
	MsgNoSource        = "Document text not extracted and file not available"
	MsgDBUnavailable   = "Database (Postgres) not available; please ensure DATABASE_URL is correct and database is running."
)

var ErrNotFound = apperr.NotFound("", MsgNotFound)

var errDuplicateID = apperr.New(apperr.KindInternal, "documents.create", "duplicate document id", nil)
