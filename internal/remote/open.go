package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// Backend names a remote store implementation.
type Backend string

const (
	BackendHTTP      Backend = "http"
	BackendRedis     Backend = "redis"
	BackendSQLite    Backend = "sqlite"
	BackendPostgres  Backend = "postgres"
	BackendFirestore Backend = "firestore"
	BackendMemory    Backend = "memory"
)

// Store is the three-call contract every backend satisfies.
type Store interface {
	Fetch(ctx context.Context) (model.Document, bool, error)
	Update(ctx context.Context, doc model.Document) (bool, error)
	Create(ctx context.Context, doc model.Document) error
}

// HealthChecker is implemented by backends that hold a connection and can
// test it without reading the document.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	Table   string
	Key     string

	URL     string
	APIKey  string
	Timeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string
	SQLitePath  string

	FirestoreProject     string
	FirestoreCredentials string
}

// Open builds the configured backend. The returned close function is never
// nil.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case BackendHTTP, "":
		if opts.URL == "" {
			return nil, noop, fmt.Errorf("http backend requires a remote url")
		}
		return NewHTTPStore(opts.URL, opts.APIKey, opts.Table, opts.Key, opts.Timeout), noop, nil

	case BackendRedis:
		s := NewRedisStore(NewRedisClient(opts.RedisAddr, opts.RedisPassword, opts.RedisDB), opts.Table, opts.Key)
		return s, s.Close, nil

	case BackendSQLite:
		s, err := OpenSQL(DialectSQLite, opts.SQLitePath, opts.Table, opts.Key)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case BackendPostgres:
		s, err := OpenSQL(DialectPostgres, opts.DatabaseURL, opts.Table, opts.Key)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case BackendFirestore:
		s, err := NewFirestoreStore(ctx, opts.FirestoreProject, opts.FirestoreCredentials, opts.Table, opts.Key)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case BackendMemory:
		return NewMemory(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown backend %q", opts.Backend)
}
