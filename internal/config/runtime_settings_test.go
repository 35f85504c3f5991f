package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		TargetLanguage:     "English",
		TranslationEnabled: true,
		MaxMessageLength:   200,
	}
}

func TestRuntimeSettings_Validate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	invalidLang := validSettings()
	invalidLang.TargetLanguage = ""
	require.Error(t, invalidLang.Validate())

	unsupported := validSettings()
	unsupported.TargetLanguage = "Klingon"
	require.Error(t, unsupported.Validate())

	invalidLength := validSettings()
	invalidLength.MaxMessageLength = 0
	require.Error(t, invalidLength.Validate())
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"runtime.json", "runtime.yaml"} {
		t.Run(name, func(t *testing.T) {
			filePath := filepath.Join(t.TempDir(), "settings", name)
			input := RuntimeSettings{
				TargetLanguage:     "Japanese",
				TranslationEnabled: false,
				MaxMessageLength:   120,
			}

			require.NoError(t, WriteRuntimeSettingsFile(filePath, input))

			got, err := LoadRuntimeSettingsFile(filePath)
			require.NoError(t, err)
			assert.Equal(t, input, got)

			info, err := os.Stat(filePath)
			require.NoError(t, err)
			assert.False(t, info.IsDir())
		})
	}
}

func TestLoadRuntimeSettingsFile_YAMLKeys(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(filePath, []byte("target_language: de\ntranslation_enabled: true\nmax_message_length: 80\n"), 0o600))

	got, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, "de", got.TargetLanguage)
	assert.Equal(t, 80, got.MaxMessageLength)

	lang, err := got.Language()
	require.NoError(t, err)
	assert.Equal(t, "German", lang.Name())
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	t.Setenv("TARGET_LANGUAGE", "English")

	override := RuntimeSettings{
		TargetLanguage:     "ja",
		TranslationEnabled: false,
		MaxMessageLength:   50,
	}

	cfg, err := NewFromEnv(WithRuntimeSettings(override))
	require.NoError(t, err)
	assert.Equal(t, "Japanese", cfg.Translate.TargetLanguage.Name())
	assert.False(t, cfg.Translate.Enabled)
	assert.Equal(t, 50, cfg.Translate.MaxMessageLength)
}

func TestRuntimeSettingsStore_UpdatePersistsFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "runtime-settings.json")

	store, err := NewRuntimeSettingsStore(filePath, validSettings())
	require.NoError(t, err)

	next := RuntimeSettings{
		TargetLanguage:     "Spanish",
		TranslationEnabled: true,
		MaxMessageLength:   300,
	}
	got, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, next, got)

	loaded, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

func TestRuntimeSettingsStore_NotifiesOnlyOnChange(t *testing.T) {
	store, err := NewRuntimeSettingsStore("", validSettings())
	require.NoError(t, err)

	var calls []RuntimeSettings
	store.Subscribe(func(prev, next RuntimeSettings) {
		calls = append(calls, prev, next)
	})

	require.NoError(t, store.Apply(validSettings()))
	assert.Empty(t, calls)

	next := validSettings()
	next.TargetLanguage = "French"
	require.NoError(t, store.Apply(next))
	require.Len(t, calls, 2)
	assert.Equal(t, "English", calls[0].TargetLanguage)
	assert.Equal(t, "French", calls[1].TargetLanguage)

	bad := validSettings()
	bad.TargetLanguage = "Elvish"
	require.Error(t, store.Apply(bad))
	assert.Len(t, calls, 2)
}
