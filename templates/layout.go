// Package templates renders the HTML pages of the web UI.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"pdfmerger/internal/i18n"
)

// PageData is shared by every page.
type PageData struct {
	T              i18n.Translator
	UploadLimitMB  int
	APIKeyRequired bool
}

// writer keeps the first write error so markup can be emitted without
// checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) rawf(format string, args ...any) {
	if w.err == nil {
		_, w.err = fmt.Fprintf(w.w, format, args...)
	}
}

// text writes s HTML-escaped.
func (w *writer) text(s string) { w.raw(templ.EscapeString(s)) }

func layout(data PageData, title string, active string, body func(w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		t := data.T

		w.raw(`<!DOCTYPE html><html lang="`)
		w.text(string(t.Locale))
		w.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		w.text(title)
		w.raw(`</title><link rel="stylesheet" href="/static/style.css"></head><body><nav class="nav">`)
		navLink(w, "/", t.T("nav_merge"), active == "merge")
		navLink(w, "/pdf-to-images", t.T("nav_pdf_to_images"), active == "images")
		w.raw(`</nav><main class="container">`)
		body(w)
		w.raw(`</main>`)

		msgs, err := json.Marshal(t.Client())
		if err != nil {
			return err
		}
		w.raw(`<script>window.MESSAGES = `)
		w.raw(string(msgs))
		w.raw(`;</script></body></html>`)
		return w.err
	})
}

func navLink(w *writer, href, label string, active bool) {
	class := "nav-link"
	if active {
		class += " active"
	}
	w.rawf(`<a class="%s" href="%s">`, class, templ.EscapeString(href))
	w.text(label)
	w.raw(`</a>`)
}

func apiKeyField(w *writer, data PageData) {
	if !data.APIKeyRequired {
		return
	}
	t := data.T
	w.raw(`<label class="field"><span>`)
	w.text(t.T("api_key_label"))
	w.raw(`</span><input type="password" id="api-key" autocomplete="off" placeholder="`)
	w.text(t.T("api_key_placeholder"))
	w.raw(`"></label>`)
}

type option struct{ value, label string }

func selectField(w *writer, label, class string, opts []option) {
	w.raw(`<label class="field"><span>`)
	w.text(label)
	w.rawf(`</span><select class="%s">`, class)
	for _, o := range opts {
		w.raw(`<option value="`)
		w.text(o.value)
		w.raw(`">`)
		w.text(o.label)
		w.raw(`</option>`)
	}
	w.raw(`</select></label>`)
}
