// Package web bundles the HTML templates and static assets into the binary.
package web

import (
	"embed"
	"io/fs"
)

// TemplatePatterns lists the template globs parsed at startup, layouts first.
var TemplatePatterns = []string{
	"templates/layouts/*.html",
	"templates/partials/*.html",
	"templates/pages/*.html",
}

// Templates embeds HTML templates.
//
//go:embed templates/**/*.html
var Templates embed.FS

//go:embed static
var static embed.FS

// Static returns the static assets rooted at the static directory, so files
// are addressed as css/app.css.
func Static() (fs.FS, error) {
	return fs.Sub(static, "static")
}
