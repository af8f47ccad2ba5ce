package documents

import (
	"context"
	"time"

	"docsum-backend/internal/analysis"
)

// Repo defines persistence operations for documents. Updates are partial and
// bump UpdatedAt; concurrent writers are last-write-wins.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// List returns documents newest first. limit <= 0 returns everything.
	List(ctx context.Context, limit, offset int) ([]Document, error)
	UpdateExtractedText(ctx context.Context, id, text string, at time.Time) error
	UpdateAnalysis(ctx context.Context, id string, result analysis.Result, at time.Time) error
}
