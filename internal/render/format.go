package render

import (
	"hash/fnv"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/irc"
)

const timeLayout = "15:04:05"

// userColors are the ANSI colors picked for users without a color tag.
var userColors = []lipgloss.Color{
	lipgloss.Color("6"), // cyan
	lipgloss.Color("2"), // green
	lipgloss.Color("3"), // yellow
	lipgloss.Color("4"), // blue
	lipgloss.Color("5"), // magenta
	lipgloss.Color("1"), // red
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Formatter turns events into newline-terminated blocks.
type Formatter struct {
	renderer *lipgloss.Renderer
	useTags  bool

	timestamp   lipgloss.Style
	translation lipgloss.Style
	notice      lipgloss.Style
	cheer       lipgloss.Style
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithColorProfile forces a color profile, e.g. termenv.Ascii in tests or
// when output is piped.
func WithColorProfile(p termenv.Profile) FormatterOption {
	return func(f *Formatter) { f.renderer.SetColorProfile(p) }
}

// WithTagColors makes a valid #RRGGBB color tag override the hashed color.
func WithTagColors(enabled bool) FormatterOption {
	return func(f *Formatter) { f.useTags = enabled }
}

// NewFormatter builds styles bound to w's terminal capabilities.
func NewFormatter(w io.Writer, opts ...FormatterOption) *Formatter {
	f := &Formatter{
		renderer: lipgloss.NewRenderer(w),
		useTags:  true,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.timestamp = f.renderer.NewStyle()
	f.translation = f.renderer.NewStyle().Faint(true)
	f.notice = f.renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Italic(true)
	f.cheer = f.renderer.NewStyle().Foreground(lipgloss.Color("5")).Bold(true).Italic(true)
	return f
}

// UserColor returns the deterministic color for login.
func UserColor(login string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(login)))
	return userColors[h.Sum32()%uint32(len(userColors))]
}

func (f *Formatter) nameColor(login, tag string) lipgloss.Color {
	if f.useTags && hexColor.MatchString(tag) {
		return lipgloss.Color(tag)
	}
	return UserColor(login)
}

func (f *Formatter) stamp(t time.Time) string {
	return f.timestamp.Render("[" + t.Local().Format(timeLayout) + "]")
}

// Message renders "[HH:MM:SS] <badges><Name>: body".
func (f *Formatter) Message(m irc.ChatMessage, badges string) string {
	name := f.renderer.NewStyle().Foreground(f.nameColor(m.Login, m.Color)).Render(m.DisplayName)

	var b strings.Builder
	b.WriteString(f.stamp(m.SentAt))
	b.WriteByte(' ')
	b.WriteString(badges)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(m.Body)
	b.WriteByte('\n')
	return b.String()
}

// Translation renders the indented, dimmed line that follows a message.
func (f *Formatter) Translation(text string, lang config.Language) string {
	prefix := "    ↳ "
	if lang.Flag != "" {
		prefix += lang.Flag + " "
	}
	return f.translation.Render(prefix+text) + "\n"
}

// Notice renders a subscription notice surrounded by blank lines.
func (f *Formatter) Notice(n irc.NoticeEvent) string {
	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(f.stamp(n.SentAt))
	b.WriteByte(' ')
	b.WriteString(f.notice.Render("★ " + n.SystemText))
	b.WriteByte('\n')
	if body := strings.TrimSpace(n.Body); body != "" {
		b.WriteString("    ")
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// Cheer renders a bits message surrounded by blank lines.
func (f *Formatter) Cheer(c irc.CheerEvent, badges string) string {
	text := "✦ " + c.DisplayName + " cheered " + strconv.Itoa(c.Bits) + " bits"
	if c.Body != "" {
		text += ": " + c.Body
	}

	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(f.stamp(c.SentAt))
	b.WriteByte(' ')
	b.WriteString(badges)
	b.WriteString(f.cheer.Render(text))
	b.WriteString("\n\n")
	return b.String()
}

// Status renders a plain informational line.
func (f *Formatter) Status(text string) string {
	return f.translation.Render(text) + "\n"
}
