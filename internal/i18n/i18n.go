// Package i18n localises the kiosk's user-facing texts.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// Translator resolves message IDs for the embedded languages.
type Translator struct {
	defaultLang string
	bundle      *goi18n.Bundle
	localizers  map[string]*goi18n.Localizer
	matcher     language.Matcher
}

// New loads the embedded message files. defaultLang must be one of them.
func New(defaultLang string) (*Translator, error) {
	return NewFromFS(locales, "locales", defaultLang)
}

// NewFromFS loads every *.json message file in dir of fsys.
func NewFromFS(fsys fs.FS, dir, defaultLang string) (*Translator, error) {
	if defaultLang == "" {
		defaultLang = "en"
	}
	defTag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := goi18n.NewBundle(defTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}
	var loaded []language.Tag
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		mf, err := bundle.LoadMessageFileFS(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", e.Name(), err)
		}
		loaded = append(loaded, mf.Tag)
	}

	t := &Translator{
		defaultLang: baseOf(defTag),
		bundle:      bundle,
		localizers:  make(map[string]*goi18n.Localizer),
	}
	// The matcher falls back to its first tag, so the default goes first.
	tags := []language.Tag{defTag}
	for _, tag := range loaded {
		lang := baseOf(tag)
		t.localizers[lang] = goi18n.NewLocalizer(bundle, lang, t.defaultLang)
		if lang != t.defaultLang {
			tags = append(tags, tag)
		}
	}
	if _, ok := t.localizers[t.defaultLang]; !ok {
		return nil, fmt.Errorf("no messages for default language %q", t.defaultLang)
	}
	t.matcher = language.NewMatcher(tags)

	log.Debugf("Loaded translations for %v", t.Languages())
	return t, nil
}

// Default returns the fallback language.
func (t *Translator) Default() string { return t.defaultLang }

// Languages lists the loaded languages.
func (t *Translator) Languages() []string {
	out := make([]string, 0, len(t.localizers))
	for lang := range t.localizers {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether lang has its own message file.
func (t *Translator) Supported(lang string) bool {
	_, ok := t.localizers[lang]
	return ok
}

// Match picks the best loaded language for an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return t.defaultLang
	}
	tag, _, _ := t.matcher.Match(prefs...)
	if lang := baseOf(tag); t.Supported(lang) {
		return lang
	}
	return t.defaultLang
}

// T localises id in lang. Unknown languages use the default; unknown IDs are
// returned as-is.
func (t *Translator) T(lang, id string, data map[string]any) string {
	loc, ok := t.localizers[lang]
	if !ok {
		loc = t.localizers[t.defaultLang]
	}
	msg, err := loc.Localize(&goi18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		log.Debugf("Missing translation %s for %s: %v", id, lang, err)
		return id
	}
	return msg
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
