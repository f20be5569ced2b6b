// Package web embeds the server rendered templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var webFS embed.FS

// Templates returns the embedded page templates.
func Templates() (fs.FS, error) {
	return fs.Sub(webFS, "templates")
}

// Static returns the embedded static assets.
func Static() (fs.FS, error) {
	return fs.Sub(webFS, "static")
}
