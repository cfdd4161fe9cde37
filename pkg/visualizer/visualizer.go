// Package visualizer turns captured PCM into the shapes the interview widget
// draws while a round is live.
package visualizer

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Point is one waveform vertex in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ToByte maps a signed 16-bit sample onto the unsigned byte scale of a
// time-domain analyser, where 128 is silence.
func ToByte(s int16) uint8 {
	return uint8(128 + int(s)/256)
}

// Waveform returns the polyline for one frame of samples. Each sample is
// plotted at y = (b/128) * height/2 with x advancing by width/len(samples);
// the line always closes at (width, height/2).
func Waveform(samples []int16, width, height float64) []Point {
	n := len(samples)
	out := make([]Point, 0, n+1)
	if n == 0 {
		return append(out, Point{X: width, Y: height / 2})
	}
	slice := width / float64(n)
	x := 0.0
	for _, s := range samples {
		v := float64(ToByte(s)) / 128.0
		out = append(out, Point{X: x, Y: v * height / 2})
		x += slice
	}
	return append(out, Point{X: width, Y: height / 2})
}

// Spectrum returns bars normalised magnitudes in [0,1] from the positive half
// of the FFT of samples.
func Spectrum(samples []int16, bars int) []float64 {
	if bars <= 0 {
		return nil
	}
	out := make([]float64, bars)
	if len(samples) < 2 {
		return out
	}
	in := make([]float64, len(samples))
	for i, s := range samples {
		// Hann window
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(len(samples)-1)))
		in[i] = float64(s) / math.MaxInt16 * w
	}
	bins := fft.FFTReal(in)
	half := len(bins) / 2
	if half == 0 {
		return out
	}
	per := float64(half) / float64(bars)
	peak := 0.0
	for b := 0; b < bars; b++ {
		lo := int(float64(b) * per)
		hi := int(float64(b+1) * per)
		if hi <= lo {
			hi = lo + 1
		}
		if hi > half {
			hi = half
		}
		sum := 0.0
		for _, c := range bins[lo:hi] {
			sum += cmplx.Abs(c)
		}
		if hi > lo {
			out[b] = sum / float64(hi-lo)
		}
		if out[b] > peak {
			peak = out[b]
		}
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// Level is the RMS of samples scaled to [0,1].
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Frame is one visualizer update.
type Frame struct {
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Points   []Point   `json:"points"`
	Spectrum []float64 `json:"spectrum,omitempty"`
	Level    float64   `json:"level"`
}

// Render builds a full frame from one snapshot.
func Render(samples []int16, width, height float64, bars int) Frame {
	return Frame{
		Width:    width,
		Height:   height,
		Points:   Waveform(samples, width, height),
		Spectrum: Spectrum(samples, bars),
		Level:    Level(samples),
	}
}
