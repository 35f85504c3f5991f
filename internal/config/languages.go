package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is one of the translation targets the chat overlay supports.
type Language struct {
	Tag  language.Tag
	Flag string
}

// Name returns the English display name, e.g. "Spanish".
func (l Language) Name() string {
	return display.English.Languages().Name(l.Tag)
}

// NativeName returns the language's name in itself, e.g. "español".
func (l Language) NativeName() string {
	return display.Self.Name(l.Tag)
}

// Code returns the ISO 639-1 code of the language.
func (l Language) Code() string {
	base, _ := l.Tag.Base()
	return base.String()
}

func (l Language) String() string {
	return l.Name()
}

// SupportedLanguages is the enumerated list of target languages.
var SupportedLanguages = []Language{
	{Tag: language.English, Flag: "🇬🇧"},
	{Tag: language.Spanish, Flag: "🇪🇸"},
	{Tag: language.French, Flag: "🇫🇷"},
	{Tag: language.German, Flag: "🇩🇪"},
	{Tag: language.Italian, Flag: "🇮🇹"},
	{Tag: language.Portuguese, Flag: "🇵🇹"},
	{Tag: language.Japanese, Flag: "🇯🇵"},
	{Tag: language.Korean, Flag: "🇰🇷"},
	{Tag: language.Chinese, Flag: "🇨🇳"},
	{Tag: language.Russian, Flag: "🇷🇺"},
}

// DefaultLanguage is used when nothing is configured.
var DefaultLanguage = SupportedLanguages[0]

// ParseLanguage accepts an English name ("German"), a native name ("deutsch")
// or a BCP 47 tag ("de", "pt-BR") and returns the matching supported language.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Language{}, fmt.Errorf("language is empty")
	}

	for _, l := range SupportedLanguages {
		if strings.EqualFold(s, l.Name()) || strings.EqualFold(s, l.NativeName()) {
			return l, nil
		}
	}

	tag, err := language.Parse(s)
	if err != nil {
		return Language{}, fmt.Errorf("unknown language %q: %w", s, err)
	}
	base, _ := tag.Base()
	for _, l := range SupportedLanguages {
		if l.Code() == base.String() {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("unsupported language %q", s)
}

// LanguageNames lists the English names of all supported languages.
func LanguageNames() []string {
	names := make([]string, 0, len(SupportedLanguages))
	for _, l := range SupportedLanguages {
		names = append(names, l.Name())
	}
	return names
}
