package health

import (
	"context"
	"database/sql"
	"time"
)

// Service reports the state of the backing dependencies.
type Service struct {
	DB            *sql.DB
	ObjectStorage bool
	LLMConfigured bool
}

// NewService constructs a new health service. db may be nil when the
// in-memory repository is in use.
func NewService(db *sql.DB, objectStorage, llmConfigured bool) *Service {
	return &Service{DB: db, ObjectStorage: objectStorage, LLMConfigured: llmConfigured}
}

// Status returns a health payload. ok is false only when a configured
// database does not answer a ping.
func (s *Service) Status(ctx context.Context) map[string]any {
	out := map[string]any{
		"ok":             true,
		"database":       "memory",
		"storage":        "local",
		"llm_configured": s.LLMConfigured,
	}
	if s.ObjectStorage {
		out["storage"] = "object"
	}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			out["ok"] = false
			out["database"] = "down"
		} else {
			out["database"] = "up"
		}
	}
	return out
}
