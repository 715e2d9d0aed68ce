package errors

import (
	"embed"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/i18n"
)

//go:embed translations/*.json
var translations embed.FS

const DefaultLanguage = "en-US"

var (
	loadOnce sync.Once
	loadErr  error
)

func loadTranslations() error {
	loadOnce.Do(func() {
		entries, err := translations.ReadDir("translations")
		if err != nil {
			loadErr = err
			return
		}
		for _, entry := range entries {
			buf, err := translations.ReadFile("translations/" + entry.Name())
			if err != nil {
				loadErr = err
				return
			}
			if err := goi18n.ParseTranslationFileBytes(entry.Name(), buf); err != nil {
				loadErr = err
				return
			}
		}
	})
	return loadErr
}

// Translator returns a translate func for the first matching language source,
// such as an Accept-Language header value.
func Translator(sources ...string) goi18n.TranslateFunc {
	if err := loadTranslations(); err != nil {
		return func(id string, _ ...interface{}) string { return id }
	}
	all := make([]string, 0, len(sources)+1)
	for _, s := range sources {
		if s != "" {
			all = append(all, s)
		}
	}
	all = append(all, DefaultLanguage)
	T, err := goi18n.Tfunc(all[0], all[1:]...)
	if err != nil {
		return func(id string, _ ...interface{}) string { return id }
	}
	return T
}

// Message translates an error id, falling back to fallback when no translation exists.
func Message(T goi18n.TranslateFunc, id, fallback string) string {
	if id == "" {
		return fallback
	}
	if text := T(id); text != id {
		return text
	}
	return fallback
}
