package analysis

import (
	"context"
	"errors"

	"docsum-backend/internal/llm"
	"docsum-backend/internal/shared/apperr"
)

// Client turns extracted text into a Result through an LLM.
type Client struct {
	llm llm.Client
}

// NewClient wraps the provider client with a single transient retry.
func NewClient(provider llm.Client) *Client {
	return &Client{llm: llm.WithRetry(provider)}
}

// Analyze sends text to the model and returns the validated result.
// Missing credentials surface as a configuration error, everything else as
// an analysis error.
func (c *Client) Analyze(ctx context.Context, text string) (Result, error) {
	const op = "analysis.analyze"
	if c == nil || c.llm == nil {
		return Result{}, apperr.Configuration(op, "analysis client is not configured")
	}

	raw, err := c.llm.Complete(ctx, llm.DocumentAnalysisMessages(text))
	if err != nil {
		if errors.Is(err, apperr.ErrConfiguration) {
			return Result{}, err
		}
		return Result{}, apperr.Analysis(op, err)
	}

	res, err := ParseResult(raw)
	if err != nil {
		return Result{}, apperr.Analysis(op, err)
	}
	return res, nil
}
