package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestSQLMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no SQL migrations embedded")
	}
	for _, name := range files {
		data, err := fs.ReadFile(FS, name)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		body := string(data)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", name)
		}
	}
}

func TestWebSessionTableName(t *testing.T) {
	if got := (WebSession{}).TableName(); got != "web_sessions" {
		t.Fatalf("TableName() = %q", got)
	}
}
