// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Statistics tracks traffic and error counts for one connection
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Fragments          uint64
	Bytes              uint64
	Frames             uint64
	FramesByType       map[byte]uint64
	ChecksumErrors     uint64
	Timeouts           uint64
	CapacityMismatches uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		FramesByType:   make(map[byte]uint64),
	}
}

// RecordFragment counts one notification fragment of n bytes
func (s *Statistics) RecordFragment(n int) {
	s.Fragments++
	s.Bytes += uint64(n)
	s.LastUpdateTime = time.Now()
}

// RecordFrame counts a verified frame
func (s *Statistics) RecordFrame(f *Frame) {
	s.Frames++
	s.FramesByType[f.Type()]++
	s.LastUpdateTime = time.Now()
}

// RecordError classifies err and counts it. Unknown errors are ignored.
func (s *Statistics) RecordError(err error) {
	switch {
	case errors.Is(err, ErrChecksum):
		s.ChecksumErrors++
	case errors.Is(err, ErrResponseTimeout):
		s.Timeouts++
	case errors.Is(err, ErrCapacityMismatch):
		s.CapacityMismatches++
	default:
		return
	}
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.Frames) / elapsed
		s.ErrorRate = float64(s.ChecksumErrors+s.Timeouts+s.CapacityMismatches) / elapsed
	}
}

// Clone returns a deep copy
func (s *Statistics) Clone() Statistics {
	c := *s
	c.FramesByType = make(map[byte]uint64, len(s.FramesByType))
	for k, v := range s.FramesByType {
		c.FramesByType[k] = v
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if s.Frames+s.ChecksumErrors > 0 {
		errorPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.Frames+s.ChecksumErrors)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Fragments:       %8d (%d bytes)\n", s.Fragments, s.Bytes)
	result += fmt.Sprintf("Frames:          %8d\n", s.Frames)

	tags := make([]int, 0, len(s.FramesByType))
	for tag := range s.FramesByType {
		tags = append(tags, int(tag))
	}
	sort.Ints(tags)
	for _, tag := range tags {
		result += fmt.Sprintf("  %-14s %8d\n", FormatMessageType(byte(tag))+":", s.FramesByType[byte(tag)])
	}

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, errorPercent)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.CapacityMismatches > 0 {
		result += fmt.Sprintf("Capacity Errors: %8d\n", s.CapacityMismatches)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// recorder guards a Statistics shared between the notification path and
// request callers
type recorder struct {
	mu    sync.Mutex
	stats *Statistics
}

func newRecorder() *recorder {
	return &recorder{stats: NewStatistics()}
}

func (r *recorder) fragment(n int) {
	r.mu.Lock()
	r.stats.RecordFragment(n)
	r.mu.Unlock()
}

func (r *recorder) frame(f *Frame) {
	r.mu.Lock()
	r.stats.RecordFrame(f)
	r.mu.Unlock()
}

func (r *recorder) error(err error) {
	r.mu.Lock()
	r.stats.RecordError(err)
	r.mu.Unlock()
}

func (r *recorder) snapshot() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CalculateRates()
	return r.stats.Clone()
}
