// Package badge resolves Twitch badge tokens into terminal glyphs.
package badge

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Kind is one badge type the resolver knows how to draw.
type Kind struct {
	Name     string
	Icon     string
	Fallback string
	match    func(token string) bool
}

func exact(name string) func(string) bool {
	return func(token string) bool { return token == name }
}

// Kinds is the fixed rendering priority.
var Kinds = []Kind{
	{Name: "broadcaster", Icon: "broadcaster", Fallback: "🎥 ", match: exact("broadcaster")},
	{Name: "moderator", Icon: "moderator", Fallback: "🛡️ ", match: exact("moderator")},
	// subscriber, sub-gifter and friends share the sub prefix
	{Name: "subscriber", Icon: "sub", Fallback: "⭐ ", match: func(t string) bool { return strings.HasPrefix(t, "sub") }},
	{Name: "vip", Icon: "vip", Fallback: "💎 ", match: exact("vip")},
	{Name: "founder", Icon: "founder", Fallback: "🏅 ", match: exact("founder")},
	{Name: "partner", Icon: "partner", Fallback: "✔️ ", match: exact("partner")},
	{Name: "turbo", Icon: "turbo", Fallback: "⚡ ", match: exact("turbo")},
}

// Resolver maps badge token sets to glyph sequences.
type Resolver struct {
	icons IconStore

	mu     sync.Mutex
	glyphs map[string]string
}

func NewResolver(icons IconStore) *Resolver {
	return &Resolver{icons: icons, glyphs: make(map[string]string)}
}

// Resolve returns the concatenated glyphs for tokens in priority order.
// Token order and duplicates do not matter.
func (r *Resolver) Resolve(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range Kinds {
		for _, t := range tokens {
			if k.match(strings.ToLower(strings.TrimSpace(t))) {
				b.WriteString(r.glyph(k))
				break
			}
		}
	}
	return b.String()
}

func (r *Resolver) glyph(k Kind) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.glyphs[k.Name]; ok {
		return g
	}
	g := k.Fallback
	if r.icons != nil {
		if data, ok := r.icons.Icon(k.Icon); ok && len(data) > 0 {
			g = InlineImage(data)
		}
	}
	r.glyphs[k.Name] = g
	return g
}

// InlineImage encodes PNG bytes as a kitty graphics sequence followed by an
// iTerm2 inline image sequence. Terminals ignore the one they do not speak.
func InlineImage(png []byte) string {
	enc := base64.StdEncoding.EncodeToString(png)
	kitty := fmt.Sprintf("\x1b_Ga=T,f=100,s=%d;%s\x1b\\", len(png), enc)
	iterm := fmt.Sprintf("\x1b]1337;File=inline=1:%s\a", enc)
	return kitty + iterm
}
