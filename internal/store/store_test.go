package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type failingBackend struct {
	getErr error
	putErr error
	puts   int
}

func (b *failingBackend) Get(context.Context, string) ([]byte, error) { return nil, b.getErr }
func (b *failingBackend) Put(context.Context, string, []byte) error {
	b.puts++
	return b.putErr
}
func (b *failingBackend) Close() error { return nil }

type sample struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestPersistentSaveLoad(t *testing.T) {
	ctx := context.Background()
	p := NewPersistent(NewMemoryStore(), zerolog.Nop())

	var got sample
	if p.Load(ctx, "missing", &got) {
		t.Fatalf("expected missing key to load as absent")
	}

	p.Save(ctx, "k", sample{Name: "a", Items: []string{"x", "y"}})
	if !p.Load(ctx, "k", &got) {
		t.Fatalf("expected saved key to load")
	}
	if got.Name != "a" || len(got.Items) != 2 || got.Items[1] != "y" {
		t.Fatalf("unexpected loaded value: %+v", got)
	}

	p.Save(ctx, "k", sample{Name: "b"})
	got = sample{}
	if !p.Load(ctx, "k", &got) || got.Name != "b" {
		t.Fatalf("expected overwrite to win, got %+v", got)
	}
}

func TestPersistentLoadCorruptIsAbsent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	if err := backend.Put(ctx, "k", []byte("{not json")); err != nil {
		t.Fatalf("put: %v", err)
	}
	p := NewPersistent(backend, zerolog.Nop())

	var got sample
	if p.Load(ctx, "k", &got) {
		t.Fatalf("expected corrupt value to load as absent")
	}
}

func TestPersistentSwallowsBackendErrors(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{
		getErr: errors.New("disk on fire"),
		putErr: errors.New("disk full"),
	}
	p := NewPersistent(backend, zerolog.Nop())

	p.Save(ctx, "k", sample{Name: "a"})
	if backend.puts != 1 {
		t.Fatalf("expected one write attempt, got %d", backend.puts)
	}
	var got sample
	if p.Load(ctx, "k", &got) {
		t.Fatalf("expected read failure to load as absent")
	}
}

func TestSQLiteStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.Get(ctx, "adminNotifications"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "adminNotifications", []byte(`[1]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "adminNotifications", []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "adminNotifications")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("expected overwritten value, got %s", got)
	}
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notifications.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := s.Put(ctx, "notifiedOverdueCallIds", []byte(`["c1"]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	got, err := s.Get(ctx, "notifiedOverdueCallIds")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != `["c1"]` {
		t.Fatalf("unexpected value after reopen: %s", got)
	}
}

func TestJSONFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewJSONFileStore(path)

	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first write, got %v", err)
	}
	if err := s.Put(ctx, "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := s.Put(ctx, "b", []byte(`[true]`)); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if err := s.Put(ctx, "c", []byte(`nope`)); err == nil {
		t.Fatalf("expected invalid JSON to be rejected")
	}

	reopened := NewJSONFileStore(path)
	got, err := reopened.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("unexpected a: %s", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err=%v", err)
	}
}

func TestJSONFileStoreRecoversFromCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}
	s := NewJSONFileStore(path)

	if _, err := s.Get(ctx, "a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error from corrupt file, got %v", err)
	}
	if err := s.Put(ctx, "a", []byte(`1`)); err != nil {
		t.Fatalf("put over corrupt file: %v", err)
	}
	if got, err := s.Get(ctx, "a"); err != nil || string(got) != "1" {
		t.Fatalf("expected self-healed file, got %q err=%v", got, err)
	}
}

func TestJSONFileStoreKeepsBytes(t *testing.T) {
	ctx := context.Background()
	s := NewJSONFileStore(filepath.Join(t.TempDir(), "state.json"))

	log := `[{"id":"a","read":false}]`
	ids := `["c1","c2"]`
	if err := s.Put(ctx, "adminNotifications", []byte(log)); err != nil {
		t.Fatalf("put log: %v", err)
	}
	if err := s.Put(ctx, "notifiedOverdueCallIds", []byte(ids)); err != nil {
		t.Fatalf("put ids: %v", err)
	}

	for key, want := range map[string]string{"adminNotifications": log, "notifiedOverdueCallIds": ids} {
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if string(got) != want {
			t.Fatalf("get %s = %s, want %s", key, got, want)
		}
	}
}

func TestJSONFileStoreReadErrorKeepsFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("seeding unreadable path: %v", err)
	}
	s := NewJSONFileStore(path)

	err := s.Put(ctx, "a", []byte(`1`))
	if err == nil {
		t.Fatalf("expected Put to fail on an unreadable file")
	}
	if errors.Is(err, errCorruptFile) || !strings.Contains(err.Error(), "reading") {
		t.Fatalf("expected the read error to be returned before any write, got %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected no replacement to be attempted, stat err=%v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		dsn     string
		wantErr bool
		check   func(Backend) bool
	}{
		{dsn: "memory://", check: func(b Backend) bool { _, ok := b.(*MemoryStore); return ok }},
		{dsn: "sqlite://:memory:", check: func(b Backend) bool { _, ok := b.(*SQLiteStore); return ok }},
		{dsn: "sqlite://" + filepath.Join(dir, "sub", "n.db"), check: func(b Backend) bool { _, ok := b.(*SQLiteStore); return ok }},
		{dsn: filepath.Join(dir, "bare.db"), check: func(b Backend) bool { _, ok := b.(*SQLiteStore); return ok }},
		{dsn: "file://" + filepath.Join(dir, "n.json"), check: func(b Backend) bool { _, ok := b.(*JSONFileStore); return ok }},
		{dsn: "postgres://localhost/admin3", wantErr: true},
		{dsn: "", wantErr: true},
		{dsn: "file://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			b, err := Open(tt.dsn)
			if tt.wantErr {
				if err == nil {
					b.Close()
					t.Fatalf("expected error for %q", tt.dsn)
				}
				if !errors.Is(err, ErrUnsupportedBackend) {
					t.Fatalf("expected ErrUnsupportedBackend, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("open %q: %v", tt.dsn, err)
			}
			t.Cleanup(func() { b.Close() })
			if !tt.check(b) {
				t.Fatalf("unexpected backend type %T for %q", b, tt.dsn)
			}
		})
	}
}
