// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns an incrementally delivered response into a growing
// sequence of text snapshots.
//
// A ChunkSource hands out opaque byte chunks until it reports io.EOF (clean
// end) or another error (failure). The Accumulator decodes each chunk with a
// stateful decoder, so a code point split across two chunks is joined rather
// than corrupted, and yields the whole buffer after every chunk:
//
//	acc := stream.NewAccumulator()
//	for snap := range acc.Open(ctx, stream.FromReader(resp.Body, 0)) {
//	    render(snap.Text)
//	}
//	if err := acc.Err(); err != nil {
//	    // acc.Partial() still holds what arrived before the failure
//	}
//
// Each Snapshot strictly extends the previous one. Reading the next chunk is
// the only point where Open blocks.
package stream
