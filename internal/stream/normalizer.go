// Package stream normalizes the three upstream SSE wire formats into one
// canonical event stream. The caller sees `data: {"content": ...}` events and
// a final `data: [DONE]` sentinel regardless of which provider answered.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// LineParser is the active adapter's ParseStreamLine.
type LineParser func(line string) (content string, done bool)

// Normalizer is a small explicit state machine: it buffers at most one partial
// line, feeds complete lines to the adapter parser, and re-emits fragments in
// canonical form. It performs no other buffering, so a slow consumer naturally
// slows the upstream read.
type Normalizer struct {
	parse  LineParser
	out    io.Writer
	flush  func()
	onDone func(fullText string)

	buf    []byte
	full   strings.Builder
	closed bool
}

// New wires a normalizer to an output writer. flush is called after every
// emitted event (nil is allowed); onDone receives the accumulated full text
// exactly once, on the provider's done signal or on Close.
func New(parse LineParser, out io.Writer, flush func(), onDone func(fullText string)) *Normalizer {
	if flush == nil {
		flush = func() {}
	}
	if onDone == nil {
		onDone = func(string) {}
	}
	return &Normalizer{parse: parse, out: out, flush: flush, onDone: onDone}
}

// Feed consumes one chunk of the raw provider body. Chunk boundaries never
// affect the emitted fragment sequence: the trailing partial line is held back
// until its newline arrives.
func (n *Normalizer) Feed(chunk []byte) error {
	if n.closed {
		return nil
	}

	n.buf = append(n.buf, chunk...)
	for {
		idx := bytes.IndexByte(n.buf, '\n')
		if idx < 0 {
			return nil
		}
		line := strings.TrimRight(string(n.buf[:idx]), "\r")
		n.buf = n.buf[idx+1:]

		if err := n.handleLine(line); err != nil {
			return err
		}
		if n.closed {
			return nil
		}
	}
}

// Close flushes any buffered final line and emits the [DONE] sentinel if the
// provider never signaled completion itself. Idempotent.
func (n *Normalizer) Close() error {
	if n.closed {
		return nil
	}
	if len(n.buf) > 0 {
		line := strings.TrimRight(string(n.buf), "\r")
		n.buf = nil
		if err := n.handleLine(line); err != nil {
			return err
		}
		if n.closed {
			return nil
		}
	}
	return n.finish()
}

// FullText returns the accumulated content so far. Used for partial usage
// accounting when a stream is interrupted.
func (n *Normalizer) FullText() string {
	return n.full.String()
}

func (n *Normalizer) handleLine(line string) error {
	content, done := n.parse(line)
	if content != "" {
		n.full.WriteString(content)
		if err := n.emit(content); err != nil {
			return err
		}
	}
	if done {
		return n.finish()
	}
	return nil
}

func (n *Normalizer) emit(content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(n.out, "data: %s\n\n", payload); err != nil {
		return err
	}
	n.flush()
	return nil
}

func (n *Normalizer) finish() error {
	n.closed = true
	if _, err := io.WriteString(n.out, "data: [DONE]\n\n"); err != nil {
		return err
	}
	n.flush()
	n.onDone(n.full.String())
	return nil
}
