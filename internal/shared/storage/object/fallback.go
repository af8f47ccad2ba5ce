package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/metrics"
	"docsum-backend/internal/shared/telemetry"
)

// FallbackStore writes to the remote backend when one is configured and falls
// back to local disk when the remote write fails.
type FallbackStore struct {
	remote        RemoteStore
	local         ObjectStore
	httpClient    *http.Client
	publicBaseURL string
}

// NewFallbackStore builds the store. remote may be nil for local-only mode.
func NewFallbackStore(local ObjectStore, remote RemoteStore, publicBaseURL string, httpClient *http.Client) *FallbackStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FallbackStore{
		remote:        remote,
		local:         local,
		httpClient:    httpClient,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// RemoteEnabled reports whether an object backend is configured.
func (s *FallbackStore) RemoteEnabled() bool {
	return s.remote != nil
}

// Save stores the bytes and returns where they landed.
func (s *FallbackStore) Save(ctx context.Context, fileName string, r io.Reader) (Ref, error) {
	const op = "object.save"
	if s.remote == nil {
		ref, err := s.local.Save(ctx, fileName, r)
		if err != nil {
			return Ref{}, apperr.Storage(op, err)
		}
		return ref, nil
	}

	// Buffer so the local attempt can replay what the remote attempt consumed.
	data, err := io.ReadAll(r)
	if err != nil {
		return Ref{}, apperr.Storage(op, fmt.Errorf("read upload: %w", err))
	}

	ref, remoteErr := s.remote.Save(ctx, fileName, bytes.NewReader(data))
	if remoteErr == nil {
		return ref, nil
	}
	metrics.IncStorageFallback()
	telemetry.Warn("storage.fallback", map[string]any{
		"file": fileName,
		"err":  remoteErr,
	})

	ref, err = s.local.Save(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		return Ref{}, apperr.Storage(op, errors.Join(remoteErr, err))
	}
	return ref, nil
}

// Open returns a reader for the referenced bytes. Object refs are fetched from
// their recorded URL first, then read by key through the remote backend, then
// fetched from a freshly signed URL.
func (s *FallbackStore) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	const op = "object.open"
	if ref.IsZero() {
		return nil, apperr.Storage(op, errors.New("empty storage reference"))
	}

	switch ref.Kind {
	case KindLocal:
		rc, err := s.local.Open(ctx, ref)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		return rc, nil
	case KindObject:
		var errs []error
		if ref.URL != "" {
			rc, err := s.fetch(ctx, ref.URL)
			if err == nil {
				return rc, nil
			}
			errs = append(errs, err)
		}
		if s.remote == nil {
			errs = append(errs, errors.New("object storage not configured"))
			return nil, apperr.Storage(op, errors.Join(errs...))
		}
		rc, err := s.remote.Open(ctx, ref)
		if err == nil {
			return rc, nil
		}
		errs = append(errs, err)
		signed, err := s.remote.Presign(ctx, ref.Key, 5*time.Minute)
		if err != nil {
			errs = append(errs, err)
			return nil, apperr.Storage(op, errors.Join(errs...))
		}
		rc, err = s.fetch(ctx, signed)
		if err != nil {
			errs = append(errs, err)
			return nil, apperr.Storage(op, errors.Join(errs...))
		}
		return rc, nil
	default:
		return nil, apperr.Storage(op, fmt.Errorf("unknown storage kind %q", ref.Kind))
	}
}

// ReadAll loads the referenced bytes into memory.
func (s *FallbackStore) ReadAll(ctx context.Context, ref Ref) ([]byte, error) {
	rc, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperr.Storage("object.read", err)
	}
	return data, nil
}

// Presign returns a time-limited URL for key, degrading to the public URL when
// no remote backend is configured.
func (s *FallbackStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.remote != nil {
		url, err := s.remote.Presign(ctx, key, ttl)
		if err != nil {
			return "", apperr.Storage("object.presign", err)
		}
		return url, nil
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + strings.TrimLeft(key, "/"), nil
	}
	return "", apperr.Configuration("object.presign", "object storage is not configured")
}

func (s *FallbackStore) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch object: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch object: http status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
