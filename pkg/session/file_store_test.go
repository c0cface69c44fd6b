package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"filippo.io/age/armor"
)

func TestFileStorePlain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "token")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if tok, err := store.Load(ctx); err != nil || tok != "" {
		t.Fatalf("Load() on missing file = %q, %v", tok, err)
	}
	if err := store.Save(ctx, "tok1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("token file mode = %o, want 600", perm)
	}
	if tok, err := store.Load(ctx); err != nil || tok != "tok1" {
		t.Fatalf("Load() = %q, %v; want tok1", tok, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("token file still present: %v", err)
	}
}

func TestFileStorePassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store, err := NewFileStore(path, WithPassphrase("correct horse"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	store.scryptWorkFactor = 10
	ctx := context.Background()

	if err := store.Save(ctx, "tok-secret"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(raw), armor.Header) {
		t.Fatalf("token file is not armored: %q", raw)
	}
	if strings.Contains(string(raw), "tok-secret") {
		t.Fatalf("token file contains the plaintext token")
	}

	if tok, err := store.Load(ctx); err != nil || tok != "tok-secret" {
		t.Fatalf("Load() = %q, %v", tok, err)
	}

	plain, _ := NewFileStore(path)
	if _, err := plain.Load(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("Load() without key error = %v, want ErrLocked", err)
	}

	wrong, _ := NewFileStore(path, WithPassphrase("wrong"))
	if _, err := wrong.Load(ctx); err == nil {
		t.Fatalf("Load() with wrong passphrase succeeded")
	}
}

func TestFileStoreIdentity(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "token")
	store, err := NewFileStore(path, WithIdentity(id.String()))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if !store.Encrypted() {
		t.Fatalf("Encrypted() = false")
	}
	ctx := context.Background()
	if err := store.Save(ctx, "tok2"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if tok, err := store.Load(ctx); err != nil || tok != "tok2" {
		t.Fatalf("Load() = %q, %v", tok, err)
	}
}

func TestNewFileStoreValidation(t *testing.T) {
	if _, err := NewFileStore(" "); err == nil {
		t.Fatalf("NewFileStore(blank) error = nil")
	}
	if _, err := NewFileStore("x", WithIdentity("not-a-key")); err == nil {
		t.Fatalf("NewFileStore(bad identity) error = nil")
	}
	id, _ := age.GenerateX25519Identity()
	if _, err := NewFileStore("x", WithPassphrase("p"), WithIdentity(id.String())); err == nil {
		t.Fatalf("NewFileStore(both keys) error = nil")
	}
}

func TestFileStoreSaveEmptyClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store, _ := NewFileStore(path)
	ctx := context.Background()
	_ = store.Save(ctx, "tok")
	if err := store.Save(ctx, "  "); err != nil {
		t.Fatalf("Save(blank) error = %v", err)
	}
	if tok, _ := store.Load(ctx); tok != "" {
		t.Fatalf("Load() = %q, want empty", tok)
	}
}
