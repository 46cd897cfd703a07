// Package utils holds signal generators and helpers shared by tests and the
// offline tooling. All generated samples are normalized to [-1, 1].
package utils

import (
	"math"
	"math/rand/v2"
)

// RecordingTransport captures sent payloads for later inspection.
type RecordingTransport struct {
	Sent   []any
	Closed bool
}

// Send records data instead of transmitting it.
func (m *RecordingTransport) Send(data any) error {
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport closed.
func (m *RecordingTransport) Close() error {
	m.Closed = true
	return nil
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns a pure tone at 0.9 full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateNoise returns deterministic uniform white noise in [-amplitude, amplitude].
func GenerateNoise(size int, amplitude float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return buffer
}

// Split cuts samples into consecutive chunks of at most size samples, the way
// a capture device delivers its buffers.
func Split(samples []float64, size int) [][]float64 {
	if size <= 0 {
		return nil
	}
	chunks := make([][]float64, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		chunks = append(chunks, samples[start:end])
	}
	return chunks
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
