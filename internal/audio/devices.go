// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// PortAudio entry points, swapped in tests.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns all devices PortAudio reports. PortAudio must be
// initialised.
func HostDevices() ([]Device, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowInputLatency:   info.DefaultLowInputLatency,
			HighInputLatency:  info.DefaultHighInputLatency,
		}
	}
	return devices, nil
}

// InputDevice retrieves the audio input device for the given device ID.
// DefaultDevice (-1) selects the system default input device.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	devices, err := paDevices()
	if err != nil {
		return nil, err
	}

	if deviceID == DefaultDevice {
		device, err := paLibDefaultInputDeviceFunc()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return device, nil
	}

	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) does not support input", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// ListDevices writes a description of every device to w: ID, name, type,
// channel counts, default sample rate and latency range.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Type())
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n\n",
			d.LowInputLatency.Seconds()*1000,
			d.HighInputLatency.Seconds()*1000)
	}
	return nil
}

// paDevices returns all available PortAudio devices, never a nil slice on
// success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
