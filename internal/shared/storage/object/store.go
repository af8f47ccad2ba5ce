package object

import (
	"context"
	"io"
	"time"
)

// Kind names the backend a stored object lives in.
type Kind string

const (
	KindLocal  Kind = "local"
	KindObject Kind = "object"
)

// Ref locates stored bytes. A local ref carries Path; an object ref carries
// Key and, when known, a public URL.
type Ref struct {
	Kind Kind
	Path string
	Key  string
	URL  string
}

// IsZero reports whether the ref points nowhere.
func (r Ref) IsZero() bool {
	switch r.Kind {
	case KindLocal:
		return r.Path == ""
	case KindObject:
		return r.Key == ""
	default:
		return true
	}
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (Ref, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
}

// Presigner issues time-limited read URLs for object keys.
type Presigner interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// RemoteStore is an object backend that can also presign.
type RemoteStore interface {
	ObjectStore
	Presigner
}
