// Package irc turns raw Twitch IRC lines into chat events.
//
// Parsing is a single tokenization pass per line: tags, prefix, command,
// middle params and the trailing body. It is deliberately lenient and never
// validates the full IRC grammar.
package irc

import (
	"strings"
)

// Tags is the key/value metadata segment of a line, values already unescaped.
type Tags map[string]string

// Get returns the value for key and whether the key was present.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Value returns the value for key or "" when absent.
func (t Tags) Value(key string) string {
	return t[key]
}

// Line is one tokenized IRC line.
type Line struct {
	Raw         string
	Tags        Tags
	Prefix      string
	Command     string
	Params      []string
	Trailing    string
	HasTrailing bool
}

// Nick returns the nick part of the prefix ("nick!user@host").
func (l Line) Nick() string {
	nick, _, _ := strings.Cut(l.Prefix, "!")
	if strings.Contains(nick, ".") && !strings.Contains(l.Prefix, "!") {
		// server prefix such as tmi.twitch.tv
		return ""
	}
	return nick
}

// Channel returns the first middle param without its leading '#'.
func (l Line) Channel() string {
	for _, p := range l.Params {
		if strings.HasPrefix(p, "#") {
			return strings.TrimPrefix(p, "#")
		}
	}
	return ""
}

// ParseLine tokenizes raw. It never fails; missing parts are left empty.
func ParseLine(raw string) Line {
	raw = strings.TrimRight(raw, "\r\n")
	l := Line{Raw: raw}
	rest := raw

	if strings.HasPrefix(rest, "@") {
		var tagPart string
		tagPart, rest, _ = strings.Cut(rest[1:], " ")
		l.Tags = parseTags(tagPart)
	} else {
		l.Tags = Tags{}
	}

	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, ":") {
		l.Prefix, rest, _ = strings.Cut(rest[1:], " ")
	}

	rest = strings.TrimLeft(rest, " ")
	l.Command, rest, _ = strings.Cut(rest, " ")
	l.Command = strings.ToUpper(l.Command)

	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if strings.HasPrefix(rest, ":") {
			l.Trailing = rest[1:]
			l.HasTrailing = true
			break
		}
		var param string
		param, rest, _ = strings.Cut(rest, " ")
		l.Params = append(l.Params, param)
	}

	return l
}

// parseTags splits the tag segment on ';'. Escaped semicolons travel as
// "\:" so a plain split cannot cut a value short.
func parseTags(segment string) Tags {
	tags := make(Tags)
	if segment == "" {
		return tags
	}
	for _, pair := range strings.Split(segment, ";") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		tags[key] = unescapeTagValue(value)
	}
	return tags
}

// unescapeTagValue decodes IRCv3 tag escapes.
func unescapeTagValue(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(v) {
			// dangling backslash is dropped
			break
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
