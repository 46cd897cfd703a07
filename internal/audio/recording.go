// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes interleaved float32 samples to a PCM WAV file.
type Recorder struct {
	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	fullScale  float64
	path       string
}

// NewRecorder creates path and prepares a WAV encoder. bitDepth is 16 or 24.
func NewRecorder(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	if channels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("invalid recording format: %d Hz, %d channels", sampleRate, channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
		fullScale: float64(int(1)<<(bitDepth-1) - 1),
		path:      path,
	}, nil
}

// Write appends interleaved samples in [-1, 1]; values outside are clipped.
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return os.ErrClosed
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.sampleBuf.Data[i] = int(math.Round(v * r.fullScale))
	}
	return r.wavEncoder.Write(r.sampleBuf)
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	err := r.wavEncoder.Close()
	r.wavEncoder = nil
	if cerr := r.outputFile.Close(); err == nil {
		err = cerr
	}
	r.outputFile = nil
	return err
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// RecordingPath returns a timestamped WAV path inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "affect-"+now.Format("20060102-150405")+".wav")
}

// StartRecording records captured input to filename.
func (e *Engine) StartRecording(filename string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	r, err := NewRecorder(filename, int(e.config.SampleRate), e.config.Channels, bitDepth)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		os.Remove(filename)
		return ErrAlreadyRecording
	}
	return nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

// Recording reports whether input is being recorded.
func (e *Engine) Recording() bool {
	return e.recorder.Load() != nil
}
