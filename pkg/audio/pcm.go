// Package audio converts raw microphone PCM into the format a speech
// recognizer expects.
//
// Browsers capture at the hardware rate (usually 44.1 or 48 kHz), often in
// stereo and as 32-bit floats. Recognizers want 16-bit little-endian mono at
// a fixed rate. A [Converter] bridges the two, one chunk at a time.
package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
)

// Encoding is the sample encoding of a PCM stream.
type Encoding string

const (
	// S16LE is signed 16-bit little-endian integer samples.
	S16LE Encoding = "s16le"
	// F32LE is 32-bit little-endian IEEE float samples in [-1, 1].
	F32LE Encoding = "f32le"
)

// Format describes an interleaved PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// normalized fills zero fields with 16-bit mono.
func (f Format) normalized() Format {
	if f.Channels <= 0 {
		f.Channels = 1
	}
	if f.Encoding == "" {
		f.Encoding = S16LE
	}
	return f
}

// Validate reports whether f can be converted.
func (f Format) Validate() error {
	f = f.normalized()
	switch {
	case f.SampleRate < 0:
		return fmt.Errorf("audio: negative sample rate %d", f.SampleRate)
	case f.Encoding != S16LE && f.Encoding != F32LE:
		return fmt.Errorf("audio: unsupported encoding %q", f.Encoding)
	}
	return nil
}

func (f Format) bytesPerFrame() int {
	size := 2
	if f.Encoding == F32LE {
		size = 4
	}
	return size * f.Channels
}

func (f Format) String() string {
	f = f.normalized()
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s %s", f.SampleRate, ch, f.Encoding)
}

// Converter turns chunks from one format into 16-bit mono at the target rate.
// A zero sample rate on either side disables resampling. Partial frames at
// the end of a chunk are carried into the next one.
//
// A Converter keeps per-stream state; use one per capture.
type Converter struct {
	src    Format
	dstHz  int
	carry  []byte
	warned bool
}

// NewConverter returns a converter from src to 16-bit mono at dstRate.
func NewConverter(src Format, dstRate int) (*Converter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return &Converter{src: src.normalized(), dstHz: dstRate}, nil
}

// Passthrough reports whether chunks are returned unchanged.
func (c *Converter) Passthrough() bool {
	return c.src.Encoding == S16LE && c.src.Channels == 1 &&
		(c.src.SampleRate == c.dstHz || c.src.SampleRate == 0 || c.dstHz == 0)
}

// Convert converts one chunk. The result may be empty when the chunk held
// less than one frame.
func (c *Converter) Convert(chunk []byte) []byte {
	if c.Passthrough() && len(c.carry) == 0 && len(chunk)%2 == 0 {
		return chunk
	}
	if !c.warned && !c.Passthrough() {
		c.warned = true
		slog.Debug("audio: converting capture", "from", c.src, "to_rate", c.dstHz)
	}

	data := chunk
	if len(c.carry) > 0 {
		data = append(c.carry, chunk...)
		c.carry = nil
	}
	fb := c.src.bytesPerFrame()
	if rem := len(data) % fb; rem != 0 {
		c.carry = append([]byte(nil), data[len(data)-rem:]...)
		data = data[:len(data)-rem]
	}
	if len(data) == 0 {
		return nil
	}

	mono := c.downmix(data)
	if c.src.SampleRate > 0 && c.dstHz > 0 && c.src.SampleRate != c.dstHz {
		mono = resample(mono, c.src.SampleRate, c.dstHz)
	}
	return encodeS16(mono)
}

// downmix decodes whole frames and averages their channels.
func (c *Converter) downmix(data []byte) []float64 {
	fb := c.src.bytesPerFrame()
	frames := len(data) / fb
	out := make([]float64, frames)
	for i := range frames {
		frame := data[i*fb : (i+1)*fb]
		var sum float64
		for ch := range c.src.Channels {
			sum += c.sample(frame, ch)
		}
		out[i] = sum / float64(c.src.Channels)
	}
	return out
}

// sample returns channel ch of frame scaled to [-1, 1].
func (c *Converter) sample(frame []byte, ch int) float64 {
	if c.src.Encoding == F32LE {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(frame[ch*4:])))
	}
	return float64(int16(binary.LittleEndian.Uint16(frame[ch*2:]))) / 32768
}

// resample linearly interpolates samples from srcRate to dstRate.
func resample(in []float64, srcRate, dstRate int) []float64 {
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := in[idx]
		s1 := s0
		if idx+1 < len(in) {
			s1 = in[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// encodeS16 clamps samples to [-1, 1] and encodes them as 16-bit PCM.
func encodeS16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768)
		v = max(-32768, min(32767, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
