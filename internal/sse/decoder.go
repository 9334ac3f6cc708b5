// Package sse reassembles raw transport chunks into SSE data-frame payloads.
package sse

import (
	"strings"
	"unicode/utf8"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Decoder turns a sequence of arbitrary-sized byte chunks into the payloads
// of complete `data:` frames. It carries both an unterminated trailing line
// and an incomplete trailing UTF-8 sequence across Feed calls, so chunk
// boundaries may fall mid-line or mid-character.
//
// A Decoder is owned by exactly one stream session and is not safe for
// concurrent use.
type Decoder struct {
	pending []byte // incomplete trailing UTF-8 sequence from the last chunk
	buf     string // unterminated trailing line
	frames  int
	empty   int
}

// NewDecoder creates a decoder with empty buffers.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed decodes one transport chunk and returns the payloads of every frame
// it completes, in order. Zero-length chunks are counted and skipped.
func (d *Decoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		d.empty++
		return nil
	}

	b := chunk
	if len(d.pending) > 0 {
		b = append(d.pending, chunk...)
		d.pending = nil
	}

	// Hold back a trailing partial rune so a multi-byte character split
	// across chunks decodes intact on the next Feed.
	cut := len(b)
	for i := len(b) - 1; i >= 0 && len(b)-i <= utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(b) {
		d.pending = append([]byte(nil), b[cut:]...)
		b = b[:cut]
	}

	d.buf += string(b)

	var payloads []string
	for {
		i := strings.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		if p, ok := d.extract(line); ok {
			payloads = append(payloads, p)
		}
	}
	return payloads
}

// Flush drains the unterminated remainder, for streams whose final frame
// lacks a trailing newline. Call it once, at transport EOF.
func (d *Decoder) Flush() (string, bool) {
	rem := d.buf
	d.buf = ""
	if len(d.pending) > 0 {
		rem += string(d.pending)
		d.pending = nil
	}
	if rem == "" {
		return "", false
	}
	return d.extract(rem)
}

// extract strips framing from one complete line. Blank lines, comment/field
// lines without the data prefix, and the terminal sentinel are all dropped.
func (d *Decoder) extract(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := line[len(dataPrefix):]
	if payload == doneSentinel {
		return "", false
	}
	d.frames++
	return payload, true
}

// Frames reports how many data frames have been extracted so far.
func (d *Decoder) Frames() int { return d.frames }

// EmptyChunks reports how many zero-length chunks were fed.
func (d *Decoder) EmptyChunks() int { return d.empty }
