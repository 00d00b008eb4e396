/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fifo implements the length-prefixed packet protocol exchanged
// between the core and the WebSocket server (§4.5, §6): a fixed 12-byte
// header of (listener, opcode, length) big-endian uint32s followed by the
// payload. Packets travel over a named pipe in production and, in this
// Go realization, equally well over any io.ReadWriter — including the
// in-process pipe cmd/webtrail always uses for the outbound direction (a
// --fifo-out path receives a copy of the same bytes). Optional snappy compression of the payload is grounded
// on the teacher's entryWriter/entryReader CompressSnappy negotiation.
package fifo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/golang/snappy"
)

// Opcode is the frame type carried in each packet's header. It is written
// and read back unchanged; internal/wsserver sends every outbound payload
// as a text frame whatever its opcode.
type Opcode uint32

const (
	OpcodeText   Opcode = 1
	OpcodeBinary Opcode = 2
)

// Broadcast is the sentinel Listener value meaning "every connected
// client" (§4.5: "listener 0 = broadcast, else WS fd").
const Broadcast uint32 = 0

const headerSize = 4 + 4 + 4

// ErrPacketTooLarge guards against a corrupt length field turning into an
// unbounded allocation.
var ErrPacketTooLarge = errors.New("fifo: packet length exceeds MaxPacketSize")

// MaxPacketSize bounds a single packet's payload; a snapshot bundle is
// JSON text and never approaches this in practice.
const MaxPacketSize = 64 << 20

// Packet is one FIFO message.
type Packet struct {
	Listener uint32
	Opcode   Opcode
	Payload  []byte
}

// Writer serializes Packets onto an underlying io.Writer, optionally
// snappy-compressing the payload (--snappy-fifo, §6).
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	compress bool
}

// NewWriter wraps w. When compress is true, payloads are snappy-encoded
// before the length is computed; Opcode and Listener are written as given,
// and the receiving Reader must be constructed with the same compress
// setting.
func NewWriter(w io.Writer, compress bool) *Writer {
	return &Writer{w: w, compress: compress}
}

// Write encodes and writes one packet. Safe for concurrent use.
func (fw *Writer) Write(p Packet) error {
	payload := p.Payload
	if fw.compress {
		payload = snappy.Encode(nil, payload)
	}
	if len(payload) > MaxPacketSize {
		return ErrPacketTooLarge
	}

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], p.Listener)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(p.Opcode))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(payload)))

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// Reader deserializes Packets from an underlying io.Reader.
type Reader struct {
	r        *bufio.Reader
	compress bool
}

// NewReader wraps r. compress must match the paired Writer's setting.
func NewReader(r io.Reader, compress bool) *Reader {
	return &Reader{r: bufio.NewReader(r), compress: compress}
}

// Read blocks until one full packet is available, or returns an error
// (including io.EOF on a closed pipe). Per §7 IOError policy, callers
// should log-and-retry on a fresh Reader rather than treat this as fatal.
func (fr *Reader) Read() (Packet, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Packet{}, err
	}
	listener := binary.BigEndian.Uint32(hdr[0:4])
	opcode := Opcode(binary.BigEndian.Uint32(hdr[4:8]))
	length := binary.BigEndian.Uint32(hdr[8:12])
	if length > MaxPacketSize {
		return Packet{}, ErrPacketTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return Packet{}, err
	}
	if fr.compress && len(payload) > 0 {
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return Packet{}, err
		}
		payload = decoded
	}
	return Packet{Listener: listener, Opcode: opcode, Payload: payload}, nil
}
