// SPDX-License-Identifier: MIT
package audio

import "time"

// DefaultDevice selects the system default input device.
const DefaultDevice = -1

// Device represents an audio device
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
}

// Type describes the device direction: "Input", "Output" or "Input/Output".
func (d Device) Type() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "Unknown"
	}
}
