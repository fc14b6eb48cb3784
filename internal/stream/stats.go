// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "time"

// Stats holds timing and volume figures for one stream.
type Stats struct {
	StartTime      time.Time
	FirstChunkTime time.Time
	EndTime        time.Time

	// TTFC is the time to first chunk.
	TTFC time.Duration

	Chunks    int
	Bytes     int
	Snapshots int
}

func newStats() Stats {
	return Stats{StartTime: time.Now()}
}

func (s *Stats) recordChunk(n int) {
	if s.FirstChunkTime.IsZero() {
		s.FirstChunkTime = time.Now()
		s.TTFC = s.FirstChunkTime.Sub(s.StartTime)
	}
	s.Chunks++
	s.Bytes += n
}

func (s *Stats) finish() {
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
}

// Duration returns the time from open to the end of the stream, or to now if
// it is still running.
func (s Stats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// BytesPerSecond returns the average throughput.
func (s Stats) BytesPerSecond() float64 {
	d := s.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(s.Bytes) / d
}
