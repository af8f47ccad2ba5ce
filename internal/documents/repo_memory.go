package documents

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"docsum-backend/internal/analysis"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Document),
	}
}

// Create stores a new document. Duplicate ids are rejected.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[doc.ID]; exists {
		return errDuplicateID
	}
	r.data[doc.ID] = cloneDocument(doc)
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// List returns documents newest-first, honoring limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	docs := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		docs = append(docs, cloneDocument(doc))
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// UpdateExtractedText stores extracted text for a document.
func (r *MemoryRepo) UpdateExtractedText(ctx context.Context, id, text string, at time.Time) error {
	return r.update(ctx, id, at, func(doc *Document) {
		doc.ExtractedText = &text
	})
}

// UpdateAnalysis stores the analysis result for a document.
func (r *MemoryRepo) UpdateAnalysis(ctx context.Context, id string, result analysis.Result, at time.Time) error {
	return r.update(ctx, id, at, func(doc *Document) {
		res := cloneResult(result)
		doc.Analysis = &res
	})
}

func (r *MemoryRepo) update(ctx context.Context, id string, at time.Time, apply func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	apply(&doc)
	doc.UpdatedAt = at
	r.data[id] = doc
	return nil
}

func cloneDocument(doc Document) Document {
	if doc.ExtractedText != nil {
		text := *doc.ExtractedText
		doc.ExtractedText = &text
	}
	if doc.Analysis != nil {
		res := cloneResult(*doc.Analysis)
		doc.Analysis = &res
	}
	return doc
}

func cloneResult(res analysis.Result) analysis.Result {
	res.Attributes = maps.Clone(res.Attributes)
	return res
}

var _ Repo = (*MemoryRepo)(nil)
