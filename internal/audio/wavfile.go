// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource reads a PCM WAV file as mono float64 samples in [-1, 1].
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	bitDepth int
	scale    float64
}

// OpenWAV opens path and validates its header. Only integer PCM is supported.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if d.WavAudioFormat != 1 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported WAV audio format %d (integer PCM only)", path, d.WavAudioFormat)
	}
	bitDepth := int(d.BitDepth)
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported bit depth %d", path, bitDepth)
	}

	return &WAVSource{
		file:     f,
		decoder:  d,
		buf:      &audio.IntBuffer{Format: d.Format()},
		channels: max(int(d.NumChans), 1),
		bitDepth: bitDepth,
		scale:    1 / float64(int64(1)<<(bitDepth-1)),
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *WAVSource) SampleRate() float64 { return float64(s.decoder.SampleRate) }

// Channels returns the file's channel count before downmixing.
func (s *WAVSource) Channels() int { return s.channels }

// Read fills dst with up to len(dst) mono frames. It returns io.EOF once the
// data chunk is exhausted.
func (s *WAVSource) Read(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * s.channels
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	frames := n / s.channels
	if frames == 0 {
		return 0, io.EOF
	}

	for i := range frames {
		sum := 0.0
		for _, v := range s.buf.Data[i*s.channels : (i+1)*s.channels] {
			if s.bitDepth == 8 {
				v -= 128 // 8-bit PCM is unsigned
			}
			sum += float64(v)
		}
		dst[i] = sum * s.scale / float64(s.channels)
	}
	return frames, nil
}

// Close closes the underlying file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}
