// Package render formats chat events as terminal blocks and writes them
// without interleaving.
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/MimeLyc/twitch-chat-translator/internal/telemetry"
)

// Serializer is the single write point for the chat output.
type Serializer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSerializer(w io.Writer) *Serializer {
	return &Serializer{w: w}
}

// EmitAtomic writes block with one Write call while holding the lock, so
// blocks from concurrent producers never interleave.
func (s *Serializer) EmitAtomic(block string) error {
	if block == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := io.WriteString(s.w, block)
	if err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	if n != len(block) {
		return fmt.Errorf("write block: %w", io.ErrShortWrite)
	}
	telemetry.CountBlock()
	return nil
}
