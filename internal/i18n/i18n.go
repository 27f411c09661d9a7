// Package i18n holds the UI string catalogs and picks one per request.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type Locale string

const (
	English Locale = "en"
	Korean  Locale = "ko"
)

var (
	supported = []language.Tag{language.English, language.Korean}
	locales   = []Locale{English, Korean}
	matcher   = language.NewMatcher(supported)
)

// Detect picks the locale for r from the lang query parameter, then the
// Accept-Language header, falling back to English.
func Detect(r *http.Request) Locale {
	var tags []language.Tag
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			tags = append(tags, tag)
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if parsed, _, err := language.ParseAcceptLanguage(header); err == nil {
			tags = append(tags, parsed...)
		}
	}
	return Match(tags...)
}

// Match returns the best supported locale for tags.
func Match(tags ...language.Tag) Locale {
	if len(tags) == 0 {
		return English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(locales) {
		return English
	}
	return locales[idx]
}

// Translator looks strings up in one locale's catalog.
type Translator struct {
	Locale Locale
	msgs   map[string]string
}

func For(l Locale) Translator {
	msgs, ok := catalogs[l]
	if !ok {
		l, msgs = English, catalogs[English]
	}
	return Translator{Locale: l, msgs: msgs}
}

// T returns the string for key, falling back to English and then the key.
// args are placeholder/value pairs, e.g. T("upload_limit_note", "{limit}", "200").
func (t Translator) T(key string, args ...string) string {
	msg, ok := t.msgs[key]
	if !ok {
		if msg, ok = catalogs[English][key]; !ok {
			return key
		}
	}
	if len(args) >= 2 {
		msg = strings.NewReplacer(args...).Replace(msg)
	}
	return msg
}

// Client returns the subset of strings used by browser scripts.
func (t Translator) Client() map[string]string {
	out := make(map[string]string)
	for key := range catalogs[English] {
		if strings.HasPrefix(key, "client.") {
			out[strings.TrimPrefix(key, "client.")] = t.T(key)
		}
	}
	return out
}
