package web

import "embed"

// Templates holds the report templates rendered by internal/render.
//
//go:embed templates/*.tmpl
var Templates embed.FS
