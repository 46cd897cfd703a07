// SPDX-License-Identifier: MIT
/*
Package audio turns device or file input into the mono float64 chunks the
analysis session consumes:
- Real-time capture using PortAudio, handing each buffer to a Sink
- An ingest ring buffer that releases fixed-size analysis chunks
- WAV recording of the captured input and WAV file playback for offline runs

Thread Safety:
- The capture callback only touches pre-allocated buffers
- Recording state is switched atomically
- Locks OS thread during audio processing
*/
package audio

import (
	"affect/internal/log"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Sink receives mono chunks from the capture callback. Submit must not
// block; AsyncRunner.Submit satisfies it.
type Sink interface {
	Submit(samples []float64) bool
}

// EngineConfig describes the capture stream.
type EngineConfig struct {
	DeviceID        int
	SampleRate      float64
	FramesPerBuffer int
	Channels        int
	LowLatency      bool
}

type Engine struct {
	config EngineConfig
	sink   Sink

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	mono []float64 // Pre-allocated downmix buffer handed to the sink

	// Recording state; nil when not recording.
	recorder atomic.Pointer[Recorder]
}

// NewEngine resolves the input device. PortAudio must be initialised.
func NewEngine(cfg EngineConfig, sink Sink) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("audio engine requires a sink")
	}
	if cfg.Channels < 1 || cfg.FramesPerBuffer < 1 {
		return nil, fmt.Errorf("invalid stream shape: %d channels, %d frames per buffer", cfg.Channels, cfg.FramesPerBuffer)
	}

	inputDevice, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, sink)
	engine.inputDevice = inputDevice
	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}
	return engine, nil
}

func newEngine(cfg EngineConfig, sink Sink) *Engine {
	return &Engine{
		config: cfg,
		sink:   sink,
		mono:   make([]float64, cfg.FramesPerBuffer),
	}
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	log.Infof("Capturing from %q: %.0f Hz, %d channel(s), %d frames per buffer, latency %s",
		e.inputDevice.Name, e.config.SampleRate, e.config.Channels, e.config.FramesPerBuffer, e.inputLatency)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the PortAudio callback. in is interleaved.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only, apart from the copy the sink takes
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if r := e.recorder.Load(); r != nil {
		if err := r.Write(in); err != nil {
			log.Errorf("Error writing to WAV file: %v", err)
		}
	}

	frames := Downmix(e.mono, in, e.config.Channels)
	e.sink.Submit(e.mono[:frames])
}

// Downmix averages interleaved frames of in into dst and returns the number
// of frames written, bounded by len(dst).
func Downmix(dst []float64, in []float32, channels int) int {
	if channels <= 1 {
		n := min(len(dst), len(in))
		for i := range n {
			dst[i] = float64(in[i])
		}
		return n
	}

	n := min(len(dst), len(in)/channels)
	scale := 1 / float64(channels)
	for i := range n {
		sum := 0.0
		for _, s := range in[i*channels : (i+1)*channels] {
			sum += float64(s)
		}
		dst[i] = sum * scale
	}
	return n
}

// Close stops any recording and the input stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}
