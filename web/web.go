// Package web holds the HTML pages served by the backend.
package web

import "embed"

//go:embed templates/*.html
var TemplateFiles embed.FS
