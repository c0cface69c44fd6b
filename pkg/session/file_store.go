package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// ErrLocked is returned when the token file is encrypted and no key was configured.
var ErrLocked = errors.New("token file is encrypted; a passphrase or identity is required")

// FileStore keeps the token in a single file readable only by the owner. When a passphrase or
// age identity is configured, the file is age-encrypted and ASCII armored.
type FileStore struct {
	path             string
	passphrase       string
	identity         *age.X25519Identity
	scryptWorkFactor int
}

// FileOption customises a FileStore.
type FileOption func(*FileStore) error

// WithPassphrase encrypts the token file with an scrypt-derived key.
func WithPassphrase(passphrase string) FileOption {
	return func(s *FileStore) error {
		s.passphrase = passphrase
		return nil
	}
}

// WithIdentity encrypts the token file to an age X25519 identity ("AGE-SECRET-KEY-1...").
func WithIdentity(secretKey string) FileOption {
	return func(s *FileStore) error {
		secretKey = strings.TrimSpace(secretKey)
		if secretKey == "" {
			return nil
		}
		id, err := age.ParseX25519Identity(secretKey)
		if err != nil {
			return fmt.Errorf("parse age identity: %w", err)
		}
		s.identity = id
		return nil
	}
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("token file path is required")
	}
	s := &FileStore{path: path}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.passphrase != "" && s.identity != nil {
		return nil, errors.New("configure either a passphrase or an identity, not both")
	}
	return s, nil
}

// Path returns the token file location.
func (s *FileStore) Path() string { return s.path }

// Encrypted reports whether tokens are written encrypted.
func (s *FileStore) Encrypted() bool { return s.passphrase != "" || s.identity != nil }

func (s *FileStore) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte(armor.Header)) {
		return strings.TrimSpace(string(data)), nil
	}

	identity, err := s.ageIdentity()
	if err != nil {
		return "", err
	}
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(data)), identity)
	if err != nil {
		return "", fmt.Errorf("decrypt token file: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decrypt token file: %w", err)
	}
	return strings.TrimSpace(string(plain)), nil
}

func (s *FileStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear(ctx)
	}

	var payload bytes.Buffer
	if s.Encrypted() {
		recipient, err := s.ageRecipient()
		if err != nil {
			return err
		}
		aw := armor.NewWriter(&payload)
		w, err := age.Encrypt(aw, recipient)
		if err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		if _, err := io.WriteString(w, token); err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		if err := aw.Close(); err != nil {
			return fmt.Errorf("armor token: %w", err)
		}
	} else {
		payload.WriteString(token)
		payload.WriteByte('\n')
	}

	return writeFileAtomic(s.path, payload.Bytes())
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) ageRecipient() (age.Recipient, error) {
	if s.identity != nil {
		return s.identity.Recipient(), nil
	}
	r, err := age.NewScryptRecipient(s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("scrypt recipient: %w", err)
	}
	if s.scryptWorkFactor > 0 {
		r.SetWorkFactor(s.scryptWorkFactor)
	}
	return r, nil
}

func (s *FileStore) ageIdentity() (age.Identity, error) {
	if s.identity != nil {
		return s.identity, nil
	}
	if s.passphrase == "" {
		return nil, ErrLocked
	}
	id, err := age.NewScryptIdentity(s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("scrypt identity: %w", err)
	}
	return id, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
