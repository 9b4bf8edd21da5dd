package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localizedata embed.FS

const (
	Ru = "ru"
	En = "en"
)

var files = []string{"ru.json", "en.json"}

// Localizer resolves message ids into text of one language.
type Localizer interface {
	GetLocale() string
	MustLocalize(id string) string
	MustLocalizeWithTemplate(id string, fields ...string) string
}

type localizer struct {
	lang string
	*i18n.Localizer
}

// NewLocalizer builds a localizer for lang. Unknown languages fall back to Russian.
func NewLocalizer(lang string) (Localizer, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = Ru
	}

	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, f := range files {
		data, err := localizedata.ReadFile("locales/" + f)
		if err != nil {
			return nil, fmt.Errorf("load translation %s: %w", f, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f); err != nil {
			return nil, fmt.Errorf("parse translation %s: %w", f, err)
		}
	}

	return &localizer{
		lang:      lang,
		Localizer: i18n.NewLocalizer(bundle, lang, Ru),
	}, nil
}

// MustNew is NewLocalizer that panics on broken embedded files.
func MustNew(lang string) Localizer {
	l, err := NewLocalizer(lang)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *localizer) GetLocale() string {
	return l.lang
}

func (l *localizer) MustLocalize(id string) string {
	return l.Localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: id})
}

func (l *localizer) MustLocalizeWithTemplate(id string, fields ...string) string {
	td := make(map[string]any, len(fields))
	for i, f := range fields {
		td["f"+strconv.Itoa(i+1)] = f
	}
	return l.Localizer.MustLocalize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: td,
	})
}
