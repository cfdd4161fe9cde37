package visualizer

import (
	"math"
	"testing"
)

func TestWaveformSilenceIsCentred(t *testing.T) {
	pts := Waveform(make([]int16, 4), 100, 50)
	if len(pts) != 5 {
		t.Fatalf("expected 5 points, got %d", len(pts))
	}
	for i, p := range pts[:4] {
		if p.Y != 25 {
			t.Fatalf("point %d: expected y 25, got %v", i, p.Y)
		}
		if p.X != float64(i)*25 {
			t.Fatalf("point %d: expected x %v, got %v", i, float64(i)*25, p.X)
		}
	}
	if last := pts[4]; last.X != 100 || last.Y != 25 {
		t.Fatalf("expected closing point (100,25), got %+v", last)
	}
}

func TestWaveformExtremes(t *testing.T) {
	pts := Waveform([]int16{math.MinInt16, math.MaxInt16}, 10, 10)
	if pts[0].Y != 0 {
		t.Fatalf("expected min sample at top, got %v", pts[0].Y)
	}
	want := float64(255) / 128 * 5
	if pts[1].Y != want {
		t.Fatalf("expected max sample at %v, got %v", want, pts[1].Y)
	}
}

func TestWaveformEmpty(t *testing.T) {
	pts := Waveform(nil, 10, 8)
	if len(pts) != 1 || pts[0].X != 10 || pts[0].Y != 4 {
		t.Fatalf("expected only closing point, got %+v", pts)
	}
}

func TestToByte(t *testing.T) {
	cases := map[int16]uint8{0: 128, math.MinInt16: 0, math.MaxInt16: 255, 256: 129, -256: 127}
	for in, want := range cases {
		if got := ToByte(in); got != want {
			t.Fatalf("ToByte(%d): expected %d, got %d", in, want, got)
		}
	}
}

func TestSpectrumPeaksAtToneBin(t *testing.T) {
	const n = 512
	samples := make([]int16, n)
	// 32 cycles across the frame lands in bin 32 of 256 positive bins.
	for i := range samples {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*32*float64(i)/n))
	}
	bars := Spectrum(samples, 8)
	if len(bars) != 8 {
		t.Fatalf("expected 8 bars, got %d", len(bars))
	}
	if bars[1] != 1 {
		t.Fatalf("expected peak in bar 1, got %v", bars)
	}
	for i, b := range bars {
		if b < 0 || b > 1 {
			t.Fatalf("bar %d out of range: %v", i, b)
		}
	}
}

func TestSpectrumDegenerate(t *testing.T) {
	if Spectrum([]int16{1, 2}, 0) != nil {
		t.Fatalf("expected nil for zero bars")
	}
	for _, b := range Spectrum(nil, 4) {
		if b != 0 {
			t.Fatalf("expected zero bars for no samples")
		}
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != 0 || Level(make([]int16, 8)) != 0 {
		t.Fatalf("expected silence to be level 0")
	}
	if l := Level([]int16{math.MaxInt16, math.MaxInt16}); math.Abs(l-1) > 1e-9 {
		t.Fatalf("expected full scale level 1, got %v", l)
	}
}

func TestRender(t *testing.T) {
	f := Render(make([]int16, 16), 300, 100, 4)
	if f.Width != 300 || f.Height != 100 || len(f.Points) != 17 || len(f.Spectrum) != 4 {
		t.Fatalf("unexpected frame %+v", f)
	}
}
