package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedBackend is returned by Open for an unknown DSN scheme.
var ErrUnsupportedBackend = errors.New("unsupported store backend")

// Open builds a Backend from a DSN:
//
//	sqlite:///abs/path.db   sqlite://~/rel/path.db   sqlite://:memory:
//	file:///abs/path.json   file://~/path.json
//	memory://
//
// A DSN without a scheme is treated as a SQLite path.
func Open(dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty dsn", ErrUnsupportedBackend)
	}

	scheme, rest, found := strings.Cut(dsn, "://")
	if !found {
		scheme, rest = "sqlite", dsn
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		path, err := dsnPath(rest)
		if err != nil {
			return nil, err
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating store directory: %w", err)
			}
		}
		return NewSQLiteStore(path)
	case "file", "json":
		path, err := dsnPath(rest)
		if err != nil {
			return nil, err
		}
		return NewJSONFileStore(path), nil
	case "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, scheme)
	}
}

// dsnPath turns the part after "scheme://" into a filesystem path,
// unescaping it and expanding a leading "~/".
func dsnPath(rest string) (string, error) {
	path, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("parsing store path %q: %w", rest, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w: missing path", ErrUnsupportedBackend)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path, nil
}
