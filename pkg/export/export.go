// Package export writes point-in-time snapshots of a user's workouts.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"fitverse/pkg/workoutapi"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Snapshot is the exported document.
type Snapshot struct {
	Version    int                  `json:"version" yaml:"version"`
	ExportedAt time.Time            `json:"exported_at" yaml:"exported_at"`
	UserID     string               `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Count      int                  `json:"count" yaml:"count"`
	Workouts   []workoutapi.Workout `json:"workouts" yaml:"workouts"`
}

// NewSnapshot captures items as of at.
func NewSnapshot(userID string, items []workoutapi.Workout, at time.Time) Snapshot {
	if items == nil {
		items = []workoutapi.Workout{}
	}
	return Snapshot{
		Version:    1,
		ExportedAt: at.UTC(),
		UserID:     userID,
		Count:      len(items),
		Workouts:   items,
	}
}

// Filename suggests an object or file name for the snapshot.
func (s Snapshot) Filename(format Format, compressed bool) string {
	name := fmt.Sprintf("workouts-%s.%s", s.ExportedAt.UTC().Format("20060102T150405Z"), format)
	if compressed {
		name += ".zst"
	}
	return name
}

// Encode writes snap to w, zstd-compressed when compress is set.
func Encode(w io.Writer, snap Snapshot, format Format, compress bool) error {
	var payload []byte
	var err error
	switch format {
	case FormatJSON:
		payload, err = json.MarshalIndent(snap, "", "  ")
		if err == nil {
			payload = append(payload, '\n')
		}
	case FormatYAML:
		payload, err = yaml.Marshal(snap)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if !compress {
		_, err := w.Write(payload)
		return err
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := encoder.Write(payload); err != nil {
		encoder.Close()
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	return nil
}

// Marshal is Encode into memory.
func Marshal(snap Snapshot, format Format, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, format, compress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses the zstd layer written by Encode.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}

// Uploader stores objects and hands out presigned download links. *s3.Client satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Upload stores data under bucket/key with its SHA-256 and returns a presigned GET link valid
// for ttl. A zero ttl skips presigning.
func Upload(ctx context.Context, up Uploader, bucket, key string, data []byte, ttl time.Duration) (string, error) {
	if up == nil {
		return "", errors.New("no uploader configured")
	}
	bucket, key = strings.TrimSpace(bucket), strings.TrimLeft(strings.TrimSpace(key), "/")
	if bucket == "" || key == "" {
		return "", errors.New("bucket and key are required")
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if err := up.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), digest); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	if ttl <= 0 {
		return "", nil
	}
	link, err := up.PresignGet(ctx, bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return link, nil
}
