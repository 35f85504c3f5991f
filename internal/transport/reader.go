package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds one IRC line; Twitch lines with tags stay far below.
const maxLineSize = 64 * 1024

// ReaderTransport replays raw lines from an io.Reader such as stdin.
type ReaderTransport struct {
	lines chan readResult
	stop  chan struct{}
}

type readResult struct {
	line string
	err  error
}

func NewReaderTransport(r io.Reader) *ReaderTransport {
	t := &ReaderTransport{
		lines: make(chan readResult),
		stop:  make(chan struct{}),
	}
	go t.scan(r)
	return t
}

func (t *ReaderTransport) scan(r io.Reader) {
	defer close(t.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		select {
		case t.lines <- readResult{line: strings.TrimRight(scanner.Text(), "\r")}:
		case <-t.stop:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case t.lines <- readResult{err: fmt.Errorf("read input: %w", err)}:
		case <-t.stop:
		}
	}
}

func (t *ReaderTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (t *ReaderTransport) WriteLine(_ context.Context, line string) error {
	return discardWrite(line)
}

// Close stops the scanning goroutine once it is blocked on delivery.
func (t *ReaderTransport) Close() error {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	return nil
}
