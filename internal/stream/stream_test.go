// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func collectTexts(t *testing.T, acc *Accumulator, src ChunkSource) []string {
	t.Helper()
	var out []string
	for snap := range acc.Open(context.Background(), src) {
		out = append(out, snap.Text)
	}
	return out
}

// =============================================================================
// ACCUMULATOR TESTS
// =============================================================================

func TestAccumulator_SnapshotsGrow(t *testing.T) {
	acc := NewAccumulator()
	got := collectTexts(t, acc, FromStrings("Hel", "lo **wo", "rld**!"))

	assert.Equal(t, []string{"Hel", "Hello **wo", "Hello **world**!"}, got)
	assert.NoError(t, acc.Err())
	assert.Equal(t, "Hello **world**!", acc.Partial())
	assert.Equal(t, 3, acc.Stats().Chunks)
}

func TestAccumulator_EachSnapshotExtendsPrevious(t *testing.T) {
	acc := NewAccumulator()
	prev := ""
	seq := 0
	for snap := range acc.Open(context.Background(), FromStrings("a", "", "bc", "d\n", "e")) {
		require.True(t, strings.HasPrefix(snap.Text, prev))
		require.Greater(t, len(snap.Text), len(prev))
		require.Equal(t, seq+1, snap.Seq)
		prev, seq = snap.Text, snap.Seq
	}
	assert.Equal(t, "abcd\ne", prev)
}

func TestAccumulator_SplitCodePoint(t *testing.T) {
	// "é" is 0xC3 0xA9 and "😀" is four bytes.
	smile := []byte("😀")
	acc := NewAccumulator()
	got := collectTexts(t, acc, FromBytes(
		[]byte("caf\xc3"),
		[]byte("\xa9 "),
		smile[:1],
		smile[1:3],
		smile[3:],
	))

	assert.Equal(t, []string{"caf", "café ", "café 😀"}, got)
	assert.NotContains(t, acc.Partial(), "�")
}

func TestAccumulator_TruncatedCodePointAtEnd(t *testing.T) {
	acc := NewAccumulator()
	got := collectTexts(t, acc, FromBytes([]byte("ok"), []byte{0xE2, 0x82}))

	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0])
	assert.True(t, strings.HasPrefix(got[1], "ok"))
	assert.Contains(t, got[1], "\uFFFD")
	assert.NoError(t, acc.Err())
}

func TestAccumulator_FailureKeepsPartial(t *testing.T) {
	boom := errors.New("connection reset")
	acc := NewAccumulator()
	got := collectTexts(t, acc, FromStringsThenFail(boom, "Tell me ", "about"))

	assert.Equal(t, []string{"Tell me ", "Tell me about"}, got)

	var chErr *ChannelError
	require.ErrorAs(t, acc.Err(), &chErr)
	assert.ErrorIs(t, acc.Err(), boom)
	assert.Equal(t, "Tell me about", chErr.Partial)
	assert.Equal(t, 2, chErr.Chunks)
	assert.Equal(t, "Tell me about", acc.Partial())
}

func TestAccumulator_CancelledContextIsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acc := NewAccumulator()
	for range acc.Open(ctx, FromStrings("never")) {
		t.Fatal("no snapshot expected")
	}
	assert.ErrorIs(t, acc.Err(), context.Canceled)
}

type closeTracker struct {
	ChunkSource
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return c.ChunkSource.Close()
}

func TestAccumulator_EarlyStopClosesSource(t *testing.T) {
	src := &closeTracker{ChunkSource: FromStrings("a", "b", "c")}
	acc := NewAccumulator()

	for snap := range acc.Open(context.Background(), src) {
		if snap.Seq == 2 {
			break
		}
	}
	assert.Equal(t, 1, src.closed)
	assert.NoError(t, acc.Err())
	assert.Equal(t, "ab", acc.Partial())
}

func TestAccumulator_ReuseResets(t *testing.T) {
	acc := NewAccumulator()
	collectTexts(t, acc, FromStringsThenFail(nil, "x"))
	require.Error(t, acc.Err())

	got := collectTexts(t, acc, FromStrings("y"))
	assert.Equal(t, []string{"y"}, got)
	assert.NoError(t, acc.Err())
}

func TestAccumulator_Latin1(t *testing.T) {
	acc := NewAccumulator(WithEncoding(charmap.ISO8859_1))
	got := collectTexts(t, acc, FromBytes([]byte{'c', 'a', 'f', 0xE9}))
	assert.Equal(t, []string{"café"}, got)
}

// =============================================================================
// SOURCE TESTS
// =============================================================================

func TestFromReader_CopiesChunks(t *testing.T) {
	src := FromReader(io.NopCloser(strings.NewReader("abcdef")), 4)
	ctx := context.Background()

	first, err := src.Next(ctx)
	require.NoError(t, err)
	second, err := src.Next(ctx)
	require.NoError(t, err)
	_, err = src.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "abcd", string(first), "first chunk must survive later reads")
	assert.Equal(t, "ef", string(second))
}

func TestFromChannel(t *testing.T) {
	ch := make(chan Chunk, 3)
	ch <- Chunk{Data: []byte("one ")}
	ch <- Chunk{Data: []byte("two")}
	close(ch)

	cancelled := false
	text, err := Collect(context.Background(), FromChannel(ch, func() { cancelled = true }))
	require.NoError(t, err)
	assert.Equal(t, "one two", text)
	assert.True(t, cancelled, "Close must release the producer")
}

func TestFromChannel_ErrorChunk(t *testing.T) {
	ch := make(chan Chunk, 2)
	ch <- Chunk{Data: []byte("partial")}
	ch <- Chunk{Err: io.ErrUnexpectedEOF}

	text, err := Collect(context.Background(), FromChannel(ch, nil))
	assert.Equal(t, "partial", text)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEncodingForContentType(t *testing.T) {
	enc, err := EncodingForContentType("text/plain; charset=iso-8859-1")
	require.NoError(t, err)
	s, err := enc.NewDecoder().String("\xe9")
	require.NoError(t, err)
	assert.Equal(t, "é", s)

	_, err = EncodingForContentType("text/plain; charset=klingon")
	assert.Error(t, err)

	enc, err = EncodingForContentType("")
	require.NoError(t, err)
	assert.NotNil(t, enc)
}

func TestAccumulator_SourceEncoding(t *testing.T) {
	enc, err := EncodingByName("windows-1252")
	require.NoError(t, err)

	acc := NewAccumulator()
	got := collectTexts(t, acc, WithSourceEncoding(FromBytes([]byte{0x93, 'h', 'i', 0x94}), enc))
	assert.Equal(t, []string{"“hi”"}, got)

	// A later plain source goes back to UTF-8.
	got = collectTexts(t, acc, FromStrings("é"))
	assert.Equal(t, []string{"é"}, got)

	// An explicit encoding wins over the source.
	fixed := NewAccumulator(WithEncoding(charmap.ISO8859_1))
	got = collectTexts(t, fixed, WithSourceEncoding(FromBytes([]byte{0xE9}), enc))
	assert.Equal(t, []string{"é"}, got)
}
