package irc

import "strings"

// ExtractField returns the value of the tag named by marker ("display-name"
// or "display-name=") in line. Absence is reported with ok=false and is not an
// error; callers pick their own fallback.
func ExtractField(line, marker string) (string, bool) {
	return ParseLine(line).Field(marker)
}

// Field is ExtractField on an already tokenized line.
func (l Line) Field(marker string) (string, bool) {
	key := strings.TrimSuffix(strings.TrimSpace(marker), "=")
	if key == "" {
		return "", false
	}
	return l.Tags.Get(key)
}

// Sender resolves the sender identity: the display-name tag when present,
// otherwise the prefix nick, otherwise the login tag.
func (l Line) Sender() (login, display string, ok bool) {
	login = l.Nick()
	if login == "" {
		login = l.Tags.Value("login")
	}
	display = strings.TrimSpace(l.Tags.Value("display-name"))
	if display == "" {
		display = login
	}
	if login == "" {
		login = strings.ToLower(display)
	}
	return login, display, display != ""
}
