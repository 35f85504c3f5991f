package transport

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nxadm/tail"
)

// FileTransport replays a captured raw IRC log. With follow it keeps
// reading as the file grows, across rotation.
type FileTransport struct {
	tail *tail.Tail
}

func NewFileTransport(path string, follow bool) (*FileTransport, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	return &FileTransport{tail: t}, nil
}

func (f *FileTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-f.tail.Lines:
		if !ok {
			if err := f.tail.Err(); err != nil {
				return "", fmt.Errorf("replay file: %w", err)
			}
			return "", io.EOF
		}
		if line.Err != nil {
			return "", fmt.Errorf("replay file: %w", line.Err)
		}
		return strings.TrimRight(line.Text, "\r"), nil
	}
}

// WriteLine accepts keep-alive and join lines; a replay has nobody to answer.
func (f *FileTransport) WriteLine(_ context.Context, line string) error {
	return discardWrite(line)
}

func (f *FileTransport) Close() error {
	err := f.tail.Stop()
	f.tail.Cleanup()
	return err
}

func discardWrite(line string) error {
	switch cmd, _ := command(line); cmd {
	case "PONG", "JOIN", "PART":
		return nil
	default:
		return fmt.Errorf("replay transport cannot send %q", cmd)
	}
}
