// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Snapshot is the accumulated text of a response at one point in time.
type Snapshot struct {
	// Text is the full decoded buffer, not just the newest chunk.
	Text string
	// Seq numbers snapshots from 1 within one stream.
	Seq int
	// Bytes is the raw byte count consumed so far.
	Bytes int
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithEncoding decodes chunks from enc instead of UTF-8, overriding any
// encoding reported by the source.
func WithEncoding(enc encoding.Encoding) Option {
	return func(a *Accumulator) {
		if enc != nil {
			a.enc = enc
			a.fixed = true
		}
	}
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator consumes one response at a time. It is not safe for concurrent
// use; Err, Partial and Stats are meant to be read once the sequence returned
// by Open has finished.
type Accumulator struct {
	enc   encoding.Encoding
	fixed bool
	dec   *decoder
	// sourceDec is set while dec was built from the source's encoding.
	sourceDec bool
	buf       strings.Builder
	seq       int
	err       error
	stats     Stats
}

// NewAccumulator creates an Accumulator, UTF-8 unless configured otherwise.
func NewAccumulator(opts ...Option) *Accumulator {
	a := &Accumulator{enc: unicode.UTF8}
	for _, opt := range opts {
		opt(a)
	}
	a.dec = newDecoder(a.enc)
	return a
}

// Open returns a lazy sequence of snapshots read from src. Each iteration
// starts from an empty buffer. The sequence ends when src reports io.EOF,
// when it fails (Err then returns a *ChannelError), or when the consumer
// stops early. src is closed in every case.
func (a *Accumulator) Open(ctx context.Context, src ChunkSource) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		defer src.Close()
		a.reset(src)
		defer a.stats.finish()

		for {
			chunk, err := src.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					a.fail(err)
					return
				}
				// Clean end: bytes still waiting for the rest of a code point
				// can no longer complete.
				if a.dec.hasPending() {
					tail, derr := a.dec.decode(nil, true)
					if derr != nil {
						a.fail(derr)
						return
					}
					if tail != "" {
						a.buf.WriteString(tail)
						yield(a.snapshot())
					}
				}
				return
			}

			a.stats.recordChunk(len(chunk))
			text, derr := a.dec.decode(chunk, false)
			if derr != nil {
				a.fail(derr)
				return
			}
			if text == "" {
				continue
			}
			a.buf.WriteString(text)
			if !yield(a.snapshot()) {
				return
			}
		}
	}
}

// Err returns the terminal failure of the last stream, or nil after a clean
// end or an early stop by the consumer.
func (a *Accumulator) Err() error {
	return a.err
}

// Partial returns everything decoded so far, including after a failure.
func (a *Accumulator) Partial() string {
	return a.buf.String()
}

// Stats returns timing figures for the last stream.
func (a *Accumulator) Stats() Stats {
	return a.stats
}

func (a *Accumulator) snapshot() Snapshot {
	a.seq++
	a.stats.Snapshots++
	return Snapshot{Text: a.buf.String(), Seq: a.seq, Bytes: a.stats.Bytes}
}

func (a *Accumulator) fail(cause error) {
	a.err = &ChannelError{Cause: cause, Partial: a.buf.String(), Chunks: a.stats.Chunks}
}

func (a *Accumulator) reset(src ChunkSource) {
	if e, ok := src.(Encoded); ok && !a.fixed && e.Encoding() != nil {
		a.dec = newDecoder(e.Encoding())
		a.sourceDec = true
	} else if a.sourceDec {
		a.dec = newDecoder(a.enc)
		a.sourceDec = false
	}
	a.dec.reset()
	a.buf.Reset()
	a.seq = 0
	a.err = nil
	a.stats = newStats()
}

// =============================================================================
// CONVENIENCE
// =============================================================================

// Collect drains src and returns the final text. The error is a
// *ChannelError when the stream failed; the text is the partial buffer in
// that case.
func Collect(ctx context.Context, src ChunkSource, opts ...Option) (string, error) {
	acc := NewAccumulator(opts...)
	for range acc.Open(ctx, src) {
	}
	return acc.Partial(), acc.Err()
}
