package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// lineBuffer is how many raw lines may wait for the router.
const lineBuffer = 1024

// TwitchTransport reads raw chat lines from a live go-twitch-irc connection.
// The library already answers PING, so keep-alive replies are accepted and
// ignored.
type TwitchTransport struct {
	client *twitchirc.Client

	lines chan string
	errCh chan error
	done  chan struct{}

	connectOnce sync.Once
	closeOnce   sync.Once
}

// TwitchOption configures a TwitchTransport.
type TwitchOption func(*twitchOptions)

type twitchOptions struct {
	nick  string
	oauth string
}

// WithCredentials connects as nick instead of anonymously.
func WithCredentials(nick, oauth string) TwitchOption {
	return func(o *twitchOptions) {
		o.nick = nick
		o.oauth = oauth
	}
}

func NewTwitchTransport(opts ...TwitchOption) *TwitchTransport {
	var o twitchOptions
	for _, opt := range opts {
		opt(&o)
	}

	var client *twitchirc.Client
	if o.nick != "" && o.oauth != "" {
		client = twitchirc.NewClient(o.nick, o.oauth)
	} else {
		client = twitchirc.NewAnonymousClient()
	}

	t := &TwitchTransport{
		client: client,
		lines:  make(chan string, lineBuffer),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}

	client.OnConnect(func() {
		log.Info("Connected to Twitch chat")
	})
	client.OnReconnectMessage(func(message twitchirc.ReconnectMessage) {
		log.Warn("Twitch requested a reconnect")
	})
	client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
		t.push(m.Raw)
	})
	client.OnUserNoticeMessage(func(m twitchirc.UserNoticeMessage) {
		t.push(m.Raw)
	})
	client.OnPingMessage(func(m twitchirc.PingMessage) {
		t.push(m.Raw)
	})

	return t
}

func (t *TwitchTransport) push(raw string) {
	if raw == "" {
		return
	}
	select {
	case t.lines <- raw:
	case <-t.done:
	}
}

func (t *TwitchTransport) connect() {
	t.connectOnce.Do(func() {
		go func() {
			t.errCh <- t.client.Connect()
		}()
	})
}

// ReadLine starts the connection on first use and returns the next raw line.
func (t *TwitchTransport) ReadLine(ctx context.Context) (string, error) {
	t.connect()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-t.lines:
		return line, nil
	case err := <-t.errCh:
		if err == nil || errors.Is(err, twitchirc.ErrClientDisconnected) {
			return "", io.EOF
		}
		return "", fmt.Errorf("twitch connection: %w", err)
	}
}

// WriteLine maps outgoing JOIN and PART lines onto the client.
func (t *TwitchTransport) WriteLine(_ context.Context, line string) error {
	cmd, arg := command(line)
	switch cmd {
	case "PONG":
		return nil
	case "JOIN":
		channel := strings.TrimPrefix(arg, "#")
		if channel == "" {
			return fmt.Errorf("join: channel is required")
		}
		t.client.Join(channel)
		log.Info("Joining #%s", channel)
		return nil
	case "PART":
		t.client.Depart(strings.TrimPrefix(arg, "#"))
		return nil
	default:
		return fmt.Errorf("unsupported outgoing line %q", cmd)
	}
}

func (t *TwitchTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.client.Disconnect()
		if errors.Is(err, twitchirc.ErrConnectionIsNotOpen) {
			err = nil
		}
	})
	return err
}
