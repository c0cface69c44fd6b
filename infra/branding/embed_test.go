package branding

import (
	"io/fs"
	"testing"
)

func TestStaticContainsStylesheet(t *testing.T) {
	data, err := fs.ReadFile(Static(), "app.css")
	if err != nil {
		t.Fatalf("ReadFile(app.css) error = %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("app.css is empty")
	}
}
