// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Value Count       | uint16         | 2            | Number of floats (K)    |
| Probabilities     | []float32      | K * 4        | In label order          |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- K * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |  Value Count  |      Probabilities      |
|      (uint32)     |        (int64)        |    (uint16)   |      (K * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the number of bytes before the probability payload.
const HeaderSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp packet truncated")

// Packet is a decoded probability packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Values    []float32
}

// EncodePacket resets buf and writes one packet into it.
func EncodePacket(buf *bytes.Buffer, seq uint32, timestamp int64, values []float32) error {
	if len(values) > math.MaxUint16 {
		return fmt.Errorf("udp packet cannot carry %d values", len(values))
	}
	buf.Reset()

	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(values)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, values)
	}
	return err
}

// DecodePacket parses a packet produced by EncodePacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	payload := data[HeaderSize:]
	if len(payload) < count*4 {
		return Packet{}, fmt.Errorf("%w: %d values declared, %d bytes present", ErrShortPacket, count, len(payload))
	}

	p.Values = make([]float32, count)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[i*4:]))
	}
	return p, nil
}
