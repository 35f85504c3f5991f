package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Category
	}{
		{"ping", "PING :tmi.twitch.tv", CategoryKeepAlive},
		{"message", privmsg, CategoryMessage},
		{"cheer", "@bits=100;display-name=Rich :rich!rich@x PRIVMSG #c :Cheer100 nice", CategoryCheer},
		{"empty bits is a message", "@bits=;display-name=A :a!a@x PRIVMSG #c :hi", CategoryMessage},
		{"sub notice", "@msg-id=sub;system-msg=x :tmi.twitch.tv USERNOTICE #c", CategoryNotice},
		{"raid notice", "@msg-id=raid;system-msg=x :tmi.twitch.tv USERNOTICE #c", CategoryNotice},
		{"usernotice without msg-id", ":tmi.twitch.tv USERNOTICE #c", CategoryUnknown},
		{"join", ":a!a@a JOIN #c", CategoryUnknown},
		{"capability ack", ":tmi.twitch.tv CAP * ACK :twitch.tv/tags", CategoryUnknown},
		{"blank", "", CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "keepalive", CategoryKeepAlive.String())
	assert.Equal(t, "cheer", CategoryCheer.String())
	assert.Equal(t, "unknown", Category(42).String())
}
