package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/productdesk/productdesk/internal/shared"
	"github.com/productdesk/productdesk/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Data        any
}

var pricePrinter = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders a price the way the list shows it, e.g. $1,234.5.
func FormatPrice(v float64) string {
	return "$" + pricePrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// Truncate shortens s to n characters followed by "..." when it is longer.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// SortIndicator returns the arrow shown next to the active sort column.
func SortIndicator(column, sortBy, sortDir string) string {
	if column != sortBy {
		return ""
	}
	if sortDir == "desc" {
		return " ↓"
	}
	return " ↑"
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatPrice":   FormatPrice,
		"truncate":      Truncate,
		"sortIndicator": SortIndicator,
		"add":           func(a, b int) int { return a + b },
		"sub":           func(a, b int) int { return a - b },
		"eqInt64":       func(a *int64, b int64) bool { return a != nil && *a == b },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, web.TemplatePatterns...)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData and writes it with status.
// Nothing is written when execution fails.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
