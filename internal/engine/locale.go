package engine

import (
	"maps"
	"slices"

	"golang.org/x/text/language"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// locales matches record locale codes against the languages of the store.
// Codes are compared as canonical BCP 47 tags, so "en-us" in a file matches
// "en-US" in the store.
type locales struct {
	byTag         map[string]string
	systemDefault string
}

func newLocales(langs []entity.Language) *locales {
	l := &locales{byTag: make(map[string]string, len(langs)), systemDefault: entity.DefaultLangcode(langs)}
	for _, lang := range langs {
		l.byTag[canonicalTag(lang.Code)] = lang.Code
	}
	return l
}

func canonicalTag(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// empty reports whether no languages are configured; normalization is then
// skipped.
func (l *locales) empty() bool {
	return len(l.byTag) == 0
}

// match returns the store code for a record locale.
func (l *locales) match(code string) (string, bool) {
	c, ok := l.byTag[canonicalTag(code)]
	return c, ok
}

// normalize makes the default locale of rec one the store knows.
//
// A known default is kept (mapped to the store's spelling). Otherwise a
// translation in a known locale is promoted: the system default when
// present, else the first in sorted order. The promoted values are laid
// over the old default values, and an old default in a known language
// becomes a translation. Without such a translation the system
// default is used. In install mode the default must be the system default,
// and only a translation in that language may be promoted.
//
// Returns true if the default locale changed.
func (l *locales) normalize(rec *record.SerializedRecord, installing bool) bool {
	if l.empty() {
		return false
	}
	if code, ok := l.match(rec.DefaultLocale); ok && (!installing || code == l.systemDefault) {
		changed := code != rec.DefaultLocale
		rec.DefaultLocale = code
		return changed
	}

	promote := ""
	for _, loc := range slices.Sorted(maps.Keys(rec.Translations)) {
		code, ok := l.match(loc)
		if !ok {
			continue
		}
		if code == l.systemDefault {
			promote = loc
			break
		}
		if promote == "" && !installing {
			promote = loc
		}
	}

	if promote == "" {
		if l.systemDefault == "" {
			return false
		}
		rec.DefaultLocale = l.systemDefault
		return true
	}
	code, _ := l.match(promote)
	previous := rec.Default
	merged := previous.Clone()
	if merged == nil {
		merged = record.Fields{}
	}
	for name, values := range rec.Translations[promote] {
		merged[name] = values
	}
	delete(rec.Translations, promote)
	if old, ok := l.match(rec.DefaultLocale); ok && old != code {
		rec.Translations[old] = previous
	}
	rec.Default = merged
	rec.DefaultLocale = code
	return true
}
