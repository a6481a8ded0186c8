// Package sampler selects one frame every fixed window from a sequential
// video source.
package sampler

import (
	"context"
	"errors"
	"image"
	"io"
	"math"
	"time"
)

const (
	// DefaultWindowSeconds is the spacing between sampled frames.
	DefaultWindowSeconds = 2.0
	// DefaultFallbackRate replaces a zero or invalid container frame rate.
	DefaultFallbackRate = 30.0
)

// Policy controls interval derivation. Zero fields take the defaults.
type Policy struct {
	WindowSeconds float64
	FallbackRate  float64
}

// DefaultPolicy samples every two seconds and assumes 30 fps for bad rates.
func DefaultPolicy() Policy {
	return Policy{WindowSeconds: DefaultWindowSeconds, FallbackRate: DefaultFallbackRate}
}

func (p Policy) window() float64 {
	if !validRate(p.WindowSeconds) {
		return DefaultWindowSeconds
	}
	return p.WindowSeconds
}

func (p Policy) fallback() float64 {
	if !validRate(p.FallbackRate) {
		return DefaultFallbackRate
	}
	return p.FallbackRate
}

// EffectiveRate returns frameRate, or the fallback rate when frameRate is
// zero, negative, NaN or infinite.
func (p Policy) EffectiveRate(frameRate float64) float64 {
	if !validRate(frameRate) {
		return p.fallback()
	}
	return frameRate
}

// Interval returns the number of frames between samples, never less than 1.
// The product rate*window is floored as a whole, so 29.97 fps over a 2 s
// window gives 59 frames. Truncating the rate first (int(fps)*2) would give
// 58; callers comparing against such tools should expect the difference.
func (p Policy) Interval(frameRate float64) int {
	frames := math.Floor(p.EffectiveRate(frameRate) * p.window())
	if frames < 1 || math.IsNaN(frames) {
		return 1
	}
	if frames > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(frames)
}

// Interval applies DefaultPolicy to frameRate.
func Interval(frameRate float64) int {
	return DefaultPolicy().Interval(frameRate)
}

func validRate(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Source is a sequential, single-pass frame reader. Next returns io.EOF once
// the source is exhausted.
type Source interface {
	FrameRate() float64
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// FrameCounter is implemented by sources that know roughly how many frames
// they hold. A non-positive estimate means unknown.
type FrameCounter interface {
	FrameEstimate() int
}

// Frame is one sampled frame.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}

// Sampler yields every Interval-th frame of a Source in ascending order. It is
// not restartable; open a fresh Source to scan again.
type Sampler struct {
	src      Source
	rate     float64
	interval int
	next     int
	read     int
	sampled  int
	done     bool
}

// New wraps src using policy p.
func New(src Source, p Policy) *Sampler {
	rate := p.EffectiveRate(src.FrameRate())
	return &Sampler{
		src:      src,
		rate:     rate,
		interval: p.Interval(src.FrameRate()),
	}
}

// Interval reports the frame spacing in use.
func (s *Sampler) Interval() int { return s.interval }

// EffectiveRate reports the frame rate used for timestamps and the interval.
func (s *Sampler) EffectiveRate() float64 { return s.rate }

// Read reports how many frames have been pulled from the source.
func (s *Sampler) Read() int { return s.read }

// Sampled reports how many frames have been yielded.
func (s *Sampler) Sampled() int { return s.sampled }

// Next returns the next sampled frame, or io.EOF when the source is done.
// Frames between samples are read and discarded.
func (s *Sampler) Next(ctx context.Context) (Frame, error) {
	if s.done {
		return Frame{}, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		img, err := s.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}
		index := s.next
		s.next++
		s.read++
		if index%s.interval != 0 {
			continue
		}
		s.sampled++
		return Frame{
			Index:     index,
			Timestamp: time.Duration(float64(index) / s.rate * float64(time.Second)),
			Image:     img,
		}, nil
	}
}
