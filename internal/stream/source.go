// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/text/encoding"
)

// DefaultChunkSize is the read size used by FromReader when none is given.
const DefaultChunkSize = 4096

// ChunkSource delivers the raw chunks of one response. Next returns io.EOF
// once the response has ended cleanly; any other error is a failure. Close
// releases the underlying channel and may be called more than once.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Encoded is implemented by sources that know their charset, for example
// from a Content-Type header. The Accumulator decodes such a source with
// that charset unless WithEncoding was given.
type Encoded interface {
	Encoding() encoding.Encoding
}

type encodedSource struct {
	ChunkSource
	enc encoding.Encoding
}

func (s encodedSource) Encoding() encoding.Encoding { return s.enc }

// WithSourceEncoding marks src as carrying text in enc.
func WithSourceEncoding(src ChunkSource, enc encoding.Encoding) ChunkSource {
	if enc == nil {
		return src
	}
	return encodedSource{ChunkSource: src, enc: enc}
}

// =============================================================================
// READER SOURCE
// =============================================================================

type readerSource struct {
	rc   io.ReadCloser
	buf  []byte
	once sync.Once
	err  error
}

// FromReader adapts a response body. Every successful Read becomes one chunk,
// so chunk boundaries follow the transport.
func FromReader(rc io.ReadCloser, size int) ChunkSource {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerSource{rc: rc, buf: make([]byte, size)}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.rc.Read(s.buf)
		if n > 0 {
			// The buffer is reused, the caller gets its own copy.
			chunk := append([]byte(nil), s.buf[:n]...)
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *readerSource) Close() error {
	s.once.Do(func() { s.err = s.rc.Close() })
	return s.err
}

// =============================================================================
// CHANNEL SOURCE
// =============================================================================

// Chunk is one unit delivered over a channel. A Chunk with Err set
// terminates the stream with that failure.
type Chunk struct {
	Data []byte
	Err  error
}

type chanSource struct {
	ch     <-chan Chunk
	cancel func()
	once   sync.Once
}

// FromChannel adapts a producer goroutine. Closing the channel signals a
// clean end. cancel, if non-nil, is invoked on Close so the producer can
// stop; it must tolerate being called after the producer has finished.
func FromChannel(ch <-chan Chunk, cancel func()) ChunkSource {
	return &chanSource{ch: ch, cancel: cancel}
}

func (s *chanSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		if c.Err != nil {
			return nil, c.Err
		}
		return c.Data, nil
	}
}

func (s *chanSource) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// =============================================================================
// STATIC SOURCE
// =============================================================================

type staticSource struct {
	chunks [][]byte
	fail   error
	pos    int
}

// ErrAbort is the failure used by FromStringsThenFail when none is given.
var ErrAbort = errors.New("stream aborted")

// FromStrings replays fixed chunks and then ends cleanly.
func FromStrings(chunks ...string) ChunkSource {
	return newStatic(io.EOF, chunks)
}

// FromStringsThenFail replays fixed chunks and then fails with err (ErrAbort
// when err is nil). It is used for replays and tests.
func FromStringsThenFail(err error, chunks ...string) ChunkSource {
	if err == nil {
		err = ErrAbort
	}
	return newStatic(err, chunks)
}

func newStatic(end error, chunks []string) *staticSource {
	s := &staticSource{chunks: make([][]byte, len(chunks)), fail: end}
	for i, c := range chunks {
		s.chunks[i] = []byte(c)
	}
	return s
}

// FromBytes replays raw byte chunks, including ones that split code points.
func FromBytes(chunks ...[]byte) ChunkSource {
	return &staticSource{chunks: chunks, fail: io.EOF}
}

func (s *staticSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	return nil, s.fail
}

func (s *staticSource) Close() error { return nil }
