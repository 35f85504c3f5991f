package irc

// Category is the triage result for a raw line.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryKeepAlive
	CategoryNotice
	CategoryMessage
	CategoryCheer
)

func (c Category) String() string {
	switch c {
	case CategoryKeepAlive:
		return "keepalive"
	case CategoryNotice:
		return "notice"
	case CategoryMessage:
		return "message"
	case CategoryCheer:
		return "cheer"
	default:
		return "unknown"
	}
}

type rule struct {
	category Category
	match    func(Line) bool
}

// rules are tested in order, first match wins.
var rules = []rule{
	{CategoryKeepAlive, func(l Line) bool { return l.Command == "PING" }},
	{CategoryNotice, func(l Line) bool {
		_, ok := l.Tags.Get("msg-id")
		return l.Command == "USERNOTICE" && ok
	}},
	{CategoryCheer, func(l Line) bool { return l.Command == "PRIVMSG" && l.Tags.Value("bits") != "" }},
	{CategoryMessage, func(l Line) bool { return l.Command == "PRIVMSG" }},
}

// Classify tokenizes raw and triages it.
func Classify(raw string) Category {
	return ClassifyLine(ParseLine(raw))
}

func ClassifyLine(l Line) Category {
	for _, r := range rules {
		if r.match(l) {
			return r.category
		}
	}
	return CategoryUnknown
}
