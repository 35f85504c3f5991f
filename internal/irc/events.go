package irc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedEvent marks a line whose required fields are missing.
var ErrMalformedEvent = errors.New("malformed event")

// RawEvent is one ingested line with its arrival sequence number.
type RawEvent struct {
	Seq        uint64
	Line       string
	ReceivedAt time.Time
}

// ChatMessage is a PRIVMSG without bits.
type ChatMessage struct {
	ID          string
	Channel     string
	Login       string
	DisplayName string
	Color       string
	Body        string
	Badges      []string
	Emotes      []string
	SentAt      time.Time
}

// NoticeEvent is a USERNOTICE such as a subscription or resubscription.
type NoticeEvent struct {
	ID          string
	MsgID       string
	Channel     string
	Login       string
	DisplayName string
	SystemText  string
	Body        string
	SentAt      time.Time
}

// IsSubscription reports whether the notice is one of the sub family
// (sub, resub, subgift, submysterygift, ...).
func (n NoticeEvent) IsSubscription() bool {
	return strings.Contains(n.MsgID, "sub")
}

// CheerEvent is a PRIVMSG carrying bits.
type CheerEvent struct {
	ID          string
	Channel     string
	Login       string
	DisplayName string
	Color       string
	Bits        int
	Body        string
	SentAt      time.Time
}

var cheerToken = regexp.MustCompile(`[Cc]heer\d+\s*`)

const actionPrefix = "\x01ACTION "

func DecodeChatMessage(l Line, now time.Time) (ChatMessage, error) {
	login, display, ok := l.Sender()
	if !ok {
		return ChatMessage{}, fmt.Errorf("%w: no sender", ErrMalformedEvent)
	}
	body := messageBody(l)
	if strings.TrimSpace(body) == "" {
		return ChatMessage{}, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}

	return ChatMessage{
		ID:          eventID(l),
		Channel:     l.Channel(),
		Login:       login,
		DisplayName: display,
		Color:       l.Tags.Value("color"),
		Body:        body,
		Badges:      ParseBadges(l.Tags.Value("badges")),
		Emotes:      ParseEmotes(l.Tags.Value("emotes"), body),
		SentAt:      sentAt(l, now),
	}, nil
}

func DecodeNotice(l Line, now time.Time) (NoticeEvent, error) {
	msgID, ok := l.Tags.Get("msg-id")
	if !ok || msgID == "" {
		return NoticeEvent{}, fmt.Errorf("%w: no msg-id", ErrMalformedEvent)
	}
	system := strings.TrimSpace(l.Tags.Value("system-msg"))
	if system == "" {
		return NoticeEvent{}, fmt.Errorf("%w: no system-msg", ErrMalformedEvent)
	}
	login, display, _ := l.Sender()

	return NoticeEvent{
		ID:          eventID(l),
		MsgID:       msgID,
		Channel:     l.Channel(),
		Login:       login,
		DisplayName: display,
		SystemText:  system,
		Body:        messageBody(l),
		SentAt:      sentAt(l, now),
	}, nil
}

func DecodeCheer(l Line, now time.Time) (CheerEvent, error) {
	login, display, ok := l.Sender()
	if !ok {
		return CheerEvent{}, fmt.Errorf("%w: no sender", ErrMalformedEvent)
	}
	bits, err := strconv.Atoi(l.Tags.Value("bits"))
	if err != nil || bits <= 0 {
		return CheerEvent{}, fmt.Errorf("%w: invalid bits %q", ErrMalformedEvent, l.Tags.Value("bits"))
	}

	return CheerEvent{
		ID:          eventID(l),
		Channel:     l.Channel(),
		Login:       login,
		DisplayName: display,
		Color:       l.Tags.Value("color"),
		Bits:        bits,
		Body:        StripCheerTokens(messageBody(l)),
		SentAt:      sentAt(l, now),
	}, nil
}

// StripCheerTokens removes "Cheer100 " style tokens from a cheer body.
func StripCheerTokens(body string) string {
	return strings.TrimSpace(cheerToken.ReplaceAllString(body, ""))
}

// ParseBadges turns "moderator/1,subscriber/12" into badge names in source order.
func ParseBadges(v string) []string {
	if v == "" {
		return nil
	}
	var names []string
	for _, item := range strings.Split(v, ",") {
		name, _, _ := strings.Cut(item, "/")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseEmotes resolves the emotes tag ("25:0-4,12-16/1902:6-10") into the
// emote codes found in body. Offsets are rune indices; bad ranges are skipped.
func ParseEmotes(tag, body string) []string {
	if tag == "" || body == "" {
		return nil
	}
	runes := []rune(body)
	seen := make(map[string]struct{})
	var codes []string
	for _, group := range strings.Split(tag, "/") {
		_, ranges, ok := strings.Cut(group, ":")
		if !ok {
			continue
		}
		for _, rng := range strings.Split(ranges, ",") {
			from, to, ok := strings.Cut(rng, "-")
			if !ok {
				continue
			}
			start, err1 := strconv.Atoi(from)
			end, err2 := strconv.Atoi(to)
			if err1 != nil || err2 != nil || start < 0 || end < start || end >= len(runes) {
				continue
			}
			code := string(runes[start : end+1])
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	return codes
}

func messageBody(l Line) string {
	body := l.Trailing
	if strings.HasPrefix(body, actionPrefix) {
		body = strings.TrimSuffix(strings.TrimPrefix(body, actionPrefix), "\x01")
	}
	return body
}

func eventID(l Line) string {
	if id := l.Tags.Value("id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func sentAt(l Line, now time.Time) time.Time {
	if ts := l.Tags.Value("tmi-sent-ts"); ts != "" {
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return now
}
