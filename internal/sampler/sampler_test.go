package sampler

import (
	"context"
	"errors"
	"image"
	"io"
	"math"
	"testing"
	"time"
)

type fakeSource struct {
	rate   float64
	frames int
	pos    int
	failAt int
	closed bool
}

func (f *fakeSource) FrameRate() float64 { return f.rate }

func (f *fakeSource) Next(context.Context) (image.Image, error) {
	if f.failAt > 0 && f.pos == f.failAt {
		return nil, errors.New("decode error")
	}
	if f.pos >= f.frames {
		return nil, io.EOF
	}
	f.pos++
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestIntervalFallsBackForInvalidRates(t *testing.T) {
	for _, rate := range []float64{0, -1, -29.97, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Interval(rate); got != 60 {
			t.Fatalf("Interval(%v) = %d, want 60", rate, got)
		}
	}
}

func TestIntervalForPositiveRates(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{30, 60},
		{25, 50},
		{29.97, 59},
		{60, 120},
		{1, 2},
		{0.5, 1},
		{0.1, 1},
	}
	for _, tt := range tests {
		got := Interval(tt.rate)
		if got != tt.want {
			t.Fatalf("Interval(%v) = %d, want %d", tt.rate, got, tt.want)
		}
		if want := int(math.Max(1, math.Floor(tt.rate*2))); got != want {
			t.Fatalf("Interval(%v) = %d breaks max(1, rate*2) = %d", tt.rate, got, want)
		}
	}
}

func TestPolicyCustomWindowAndFallback(t *testing.T) {
	p := Policy{WindowSeconds: 0.5, FallbackRate: 24}
	if got := p.Interval(30); got != 15 {
		t.Fatalf("Interval(30) = %d, want 15", got)
	}
	if got := p.Interval(0); got != 12 {
		t.Fatalf("Interval(0) = %d, want 12 from fallback 24", got)
	}
	if got := p.EffectiveRate(-5); got != 24 {
		t.Fatalf("EffectiveRate(-5) = %v, want 24", got)
	}
	var zero Policy
	if got := zero.Interval(30); got != 60 {
		t.Fatalf("zero policy should use defaults, got %d", got)
	}
}

func TestSamplerYieldsMultiplesOfInterval(t *testing.T) {
	src := &fakeSource{rate: 30, frames: 300}
	s := New(src, DefaultPolicy())

	var indices []int
	for {
		frame, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		indices = append(indices, frame.Index)
	}
	want := []int{0, 60, 120, 180, 240}
	if len(indices) != len(want) {
		t.Fatalf("sampled %v, want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Fatalf("sampled %v, want %v", indices, want)
		}
	}
	if s.Read() != 300 || s.Sampled() != 5 {
		t.Fatalf("Read=%d Sampled=%d, want 300 and 5", s.Read(), s.Sampled())
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("exhausted sampler should keep returning EOF, got %v", err)
	}
}

func TestSamplerZeroRateMatchesThirtyFPS(t *testing.T) {
	src := &fakeSource{rate: 0, frames: 300}
	s := New(src, DefaultPolicy())
	if s.Interval() != 60 || s.EffectiveRate() != 30 {
		t.Fatalf("interval=%d rate=%v, want 60 and 30", s.Interval(), s.EffectiveRate())
	}
}

func TestSamplerTimestamps(t *testing.T) {
	src := &fakeSource{rate: 25, frames: 101}
	s := New(src, DefaultPolicy())
	var stamps []time.Duration
	for {
		frame, err := s.Next(context.Background())
		if err != nil {
			break
		}
		stamps = append(stamps, frame.Timestamp)
	}
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second}
	if len(stamps) != len(want) {
		t.Fatalf("timestamps %v, want %v", stamps, want)
	}
	for i := range want {
		if stamps[i] != want[i] {
			t.Fatalf("timestamps %v, want %v", stamps, want)
		}
	}
}

func TestSamplerPropagatesReadErrors(t *testing.T) {
	src := &fakeSource{rate: 30, frames: 300, failAt: 90}
	s := New(src, DefaultPolicy())
	var err error
	for err == nil {
		_, err = s.Next(context.Background())
	}
	if errors.Is(err, io.EOF) {
		t.Fatal("expected decode error, got EOF")
	}
	if s.Sampled() != 2 {
		t.Fatalf("expected frames 0 and 60 before failure, got %d", s.Sampled())
	}
}

func TestSamplerHonoursCancellation(t *testing.T) {
	src := &fakeSource{rate: 30, frames: 300}
	s := New(src, DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
