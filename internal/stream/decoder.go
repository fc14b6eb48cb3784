// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// CHARSET LOOKUP
// =============================================================================

// EncodingByName resolves a WHATWG charset label such as "utf-8",
// "iso-8859-1" or "shift_jis".
func EncodingByName(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	return enc, nil
}

// EncodingForContentType picks the decoder for a response Content-Type
// header. A missing or unparsable header means UTF-8.
func EncodingForContentType(contentType string) (encoding.Encoding, error) {
	if contentType == "" {
		return unicode.UTF8, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return unicode.UTF8, nil
	}
	return EncodingByName(params["charset"])
}

// =============================================================================
// INCREMENTAL DECODER
// =============================================================================

// decoder converts chunks to UTF-8 text, carrying incomplete multi-byte
// sequences over to the next call.
type decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newDecoder(enc encoding.Encoding) *decoder {
	return &decoder{t: enc.NewDecoder(), dst: make([]byte, 1024)}
}

func (d *decoder) reset() {
	d.t.Reset()
	d.pending = nil
}

// decode returns the text completed by p. With atEOF set, any carried bytes
// are flushed as replacement characters.
func (d *decoder) decode(p []byte, atEOF bool) (string, error) {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String(), nil
		default:
			return out.String(), err
		}
	}
}

// hasPending reports whether bytes are waiting for the rest of a code point.
func (d *decoder) hasPending() bool {
	return len(d.pending) > 0
}
