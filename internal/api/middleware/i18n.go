package middleware

import (
	"attendance-kiosk/internal/i18n"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	// LanguageKey is the context and session key of the chosen language.
	LanguageKey = "language"
	// TranslatorKey is the context key of the translator.
	TranslatorKey = "translator"
)

// I18n wählt die Sprache pro Browser: Query-Parameter, dann Session, dann
// Accept-Language, dann die Standardsprache.
func I18n(tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && tr.Supported(lang) {
			// Gewählte Sprache in der Session merken
			session.Set(LanguageKey, lang)
			if err := session.Save(); err != nil {
				log.Debugf("Failed to save language in session: %v", err)
			}
		} else if stored, ok := session.Get(LanguageKey).(string); ok && tr.Supported(stored) {
			lang = stored
		} else {
			lang = tr.Match(c.GetHeader("Accept-Language"))
		}

		c.Set(LanguageKey, lang)
		c.Set(TranslatorKey, tr)
		c.Next()
	}
}

// Language returns the language chosen by I18n, or "" outside it.
func Language(c *gin.Context) string {
	return c.GetString(LanguageKey)
}

// T übersetzt id in der Sprache der Anfrage.
func T(c *gin.Context, id string, data map[string]any) string {
	v, ok := c.Get(TranslatorKey)
	if !ok {
		return id
	}
	return v.(*i18n.Translator).T(Language(c), id, data)
}
