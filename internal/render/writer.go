// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/format"
	"github.com/jeranaias/mentorbot/internal/ui/styles"
)

// Writer prints a streaming reply block by block. A block is written once
// SettledCount says later text cannot change it, so nothing is ever
// rewritten and output works on any terminal or pipe. It implements
// conversation.Renderer.
type Writer struct {
	w io.Writer
	r *Renderer

	// EchoUser prints the user message of each turn before the reply, for
	// input that did not come from the keyboard.
	EchoUser bool
	// Labels prints the speaker line before each reply.
	Labels bool

	mu      sync.Mutex
	msgID   string
	printed int
	err     error
}

// NewWriter creates a Writer printing to w with r.
func NewWriter(w io.Writer, r *Renderer) *Writer {
	return &Writer{w: w, r: r, Labels: true}
}

// Err returns the first write error.
func (iw *Writer) Err() error {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	return iw.err
}

// Render implements conversation.Renderer.
func (iw *Writer) Render(u conversation.Update) {
	iw.mu.Lock()
	defer iw.mu.Unlock()

	last, ok := u.Last()
	if !ok {
		return
	}

	switch u.Phase {
	case conversation.PhasePending:
		iw.msgID = last.Message.ID
		iw.printed = 0
		if iw.EchoUser && len(u.Entries) >= 2 {
			iw.printf("%s\n\n", iw.r.Entry(u.Entries[len(u.Entries)-2]))
		}
		if iw.Labels {
			iw.printf("%s\n", iw.r.Label(last.Message.Role))
		}

	case conversation.PhaseStreaming:
		if last.Message.ID != iw.msgID {
			return
		}
		settled := format.SettledCount(last.Message.Content, len(last.Blocks))
		iw.flush(last.Blocks, settled)

	case conversation.PhaseComplete:
		if last.Message.ID != iw.msgID {
			return
		}
		iw.flush(last.Blocks, len(last.Blocks))
		iw.printf("\n")
		iw.msgID = ""

	case conversation.PhaseFailed:
		if last.Message.ID != iw.msgID {
			return
		}
		// Blocks already printed stay on screen; the failure text follows.
		iw.printf("%s %s\n\n",
			iw.r.style(iw.r.theme.StatusError, styles.StatusIndicators.Error),
			last.Message.Content)
		iw.msgID = ""
	}
}

func (iw *Writer) flush(blocks []format.Block, upto int) {
	for ; iw.printed < upto && iw.printed < len(blocks); iw.printed++ {
		iw.printf("%s\n", iw.r.Block(blocks[iw.printed]))
	}
}

func (iw *Writer) printf(f string, args ...any) {
	if iw.err != nil {
		return
	}
	if _, err := fmt.Fprintf(iw.w, f, args...); err != nil {
		iw.err = err
	}
}
