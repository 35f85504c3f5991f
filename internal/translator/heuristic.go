package translator

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
)

// suspiciousIdentical reports whether an unchanged reply looks like the
// model ignored the instruction: the input has translatable words and is not
// already written in the target language.
func suspiciousIdentical(source, reply string, target config.Language, emotes []string) bool {
	if strings.TrimSpace(source) != strings.TrimSpace(reply) {
		return false
	}
	if onlyPreservedTokens(source, emotes) {
		return false
	}
	return !inTargetLanguage(source, target)
}

// onlyPreservedTokens reports whether every token is an emote, a command,
// a mention, a link or has no letters at all.
func onlyPreservedTokens(text string, emotes []string) bool {
	known := make(map[string]struct{}, len(emotes))
	for _, e := range emotes {
		known[e] = struct{}{}
	}
	for _, tok := range strings.Fields(text) {
		if _, ok := known[tok]; ok {
			continue
		}
		switch {
		case strings.HasPrefix(tok, "!"), strings.HasPrefix(tok, "@"):
			continue
		case strings.HasPrefix(tok, "http://"), strings.HasPrefix(tok, "https://"):
			continue
		case !strings.ContainsFunc(tok, unicode.IsLetter):
			continue
		}
		return false
	}
	return true
}

var targetScripts = map[string][]*unicode.RangeTable{
	"ja": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"ko": {unicode.Hangul},
	"zh": {unicode.Han},
	"ru": {unicode.Cyrillic},
}

// inTargetLanguage uses script detection for non-Latin targets and
// language detection for Latin ones.
func inTargetLanguage(text string, target config.Language) bool {
	code := target.Code()
	if scripts, ok := targetScripts[code]; ok {
		detected := whatlanggo.DetectScript(text)
		for _, s := range scripts {
			if detected == s {
				return true
			}
		}
		return false
	}

	info := whatlanggo.Detect(text)
	return info.Script == unicode.Latin && info.Lang.Iso6391() == code
}
