package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "English", want: "English"},
		{input: "spanish", want: "Spanish"},
		{input: "de", want: "German"},
		{input: "pt-BR", want: "Portuguese"},
		{input: "zh-Hans", want: "Chinese"},
		{input: "  ja ", want: "Japanese"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLanguage(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name())
		})
	}
}

func TestParseLanguage_Unsupported(t *testing.T) {
	_, err := ParseLanguage("")
	require.Error(t, err)

	_, err = ParseLanguage("nl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestLanguage_CodeAndFlag(t *testing.T) {
	lang, err := ParseLanguage("Russian")
	require.NoError(t, err)
	assert.Equal(t, "ru", lang.Code())
	assert.Equal(t, "🇷🇺", lang.Flag)
	assert.Len(t, LanguageNames(), len(SupportedLanguages))
}
