/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fifo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	in := Packet{Listener: 42, Opcode: OpcodeText, Payload: []byte(`{"hello":"world"}`)}
	require.NoError(t, w.Write(in))

	r := NewReader(&buf, false)
	out, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestWriteReadRoundTripCompressed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	in := Packet{Listener: Broadcast, Opcode: OpcodeBinary, Payload: bytes.Repeat([]byte("abc"), 100)}
	require.NoError(t, w.Write(in))

	r := NewReader(&buf, true)
	out, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, in.Listener, out.Listener)
	require.Equal(t, in.Opcode, out.Opcode)
	require.Equal(t, in.Payload, out.Payload)
}

func TestReadRejectsOversizePacket(t *testing.T) {
	var buf bytes.Buffer
	hdr := make([]byte, headerSize)
	hdr[8], hdr[9], hdr[10], hdr[11] = 0xFF, 0xFF, 0xFF, 0xFF
	buf.Write(hdr)

	r := NewReader(&buf, false)
	_, err := r.Read()
	require.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestMultiplePacketsOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	require.NoError(t, w.Write(Packet{Listener: 1, Opcode: OpcodeText, Payload: []byte("a")}))
	require.NoError(t, w.Write(Packet{Listener: 2, Opcode: OpcodeText, Payload: []byte("bb")}))

	r := NewReader(&buf, false)
	p1, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, uint32(1), p1.Listener)
	p2, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, uint32(2), p2.Listener)
}
