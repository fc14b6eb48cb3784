// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// ChannelError reports that the response channel failed or closed abnormally
// mid-stream. Partial holds the text decoded before the failure.
type ChannelError struct {
	Cause   error
	Partial string
	Chunks  int
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("stream failed after %d chunks: %v", e.Chunks, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ChannelError) Unwrap() error {
	return e.Cause
}
