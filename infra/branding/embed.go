package branding

import (
	"embed"
	"io/fs"
)

// Files contains the branding assets embedded into the binary.
//
//go:embed static
var Files embed.FS

// Static returns the assets rooted at static/, ready for http.FileServer.
func Static() fs.FS {
	sub, err := fs.Sub(Files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
