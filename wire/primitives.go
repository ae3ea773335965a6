// Package wire implements the router's framed binary wire protocol: fixed
// and compact-integer primitives, nullable strings, logical/physical
// addresses, and the GossipRecord envelope built from them.
//
// The compact-integer layout (a length byte followed by that many
// little-endian bytes, and the nibble-packed two-sequence form) is the
// scheme described in org.jgroups.util.Bits: preserve it bit-exactly, it is
// not the zig-zag varint used by protobuf.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

func WriteU8(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func ReadU8(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func WriteU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func WriteI16(w io.Writer, v int16) error {
	return WriteU16(w, uint16(v))
}

func ReadI16(r io.Reader) (int16, error) {
	v, err := ReadU16(r)
	return int16(v), err
}

func bytesRequiredFor64(n int64) byte {
	v := uint64(n)
	switch {
	case v>>56 != 0:
		return 8
	case v>>48 != 0:
		return 7
	case v>>40 != 0:
		return 6
	case v>>32 != 0:
		return 5
	case v>>24 != 0:
		return 4
	case v>>16 != 0:
		return 3
	case v>>8 != 0:
		return 2
	default:
		return 1
	}
}

func bytesRequiredFor32(n int32) byte {
	v := uint32(n)
	switch {
	case v>>24 != 0:
		return 4
	case v>>16 != 0:
		return 3
	case v>>8 != 0:
		return 2
	default:
		return 1
	}
}

func byteAt64(n int64, i byte) byte {
	return byte(uint64(n) >> (uint(i) * 8))
}

func byteAt32(n int32, i byte) byte {
	return byte(uint32(n) >> (uint(i) * 8))
}

// WriteCompactInt32 writes v as a length byte L (0 denotes the value 0)
// followed by L little-endian bytes.
func WriteCompactInt32(w io.Writer, v int32) error {
	if v == 0 {
		return WriteU8(w, 0)
	}
	n := bytesRequiredFor32(v)
	buf := make([]byte, n+1)
	buf[0] = n
	for i := byte(0); i < n; i++ {
		buf[i+1] = byteAt32(v, i)
	}
	_, err := w.Write(buf)
	return err
}

// ReadCompactInt32 accepts any length byte in [0,8], per the decoder contract;
// the encoder never emits more than 4, since int32 cannot require more.
func ReadCompactInt32(r io.Reader) (int32, error) {
	n, err := ReadU8(r)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if n > 8 {
		return 0, fmt.Errorf("wire: compact int32 length byte %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var v uint32
	for i, b := range buf {
		v |= uint32(b) << (uint(i) * 8)
	}
	return int32(v), nil
}

// WriteCompactInt64 writes v as a length byte L (0 denotes the value 0)
// followed by L little-endian bytes.
func WriteCompactInt64(w io.Writer, v int64) error {
	if v == 0 {
		return WriteU8(w, 0)
	}
	n := bytesRequiredFor64(v)
	buf := make([]byte, n+1)
	buf[0] = n
	for i := byte(0); i < n; i++ {
		buf[i+1] = byteAt64(v, i)
	}
	_, err := w.Write(buf)
	return err
}

func ReadCompactInt64(r io.Reader) (int64, error) {
	n, err := ReadU8(r)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if n > 8 {
		return 0, fmt.Errorf("wire: compact int64 length byte %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (uint(i) * 8)
	}
	return int64(v), nil
}

// WriteCompactSequence writes the pair (hd, hr), 0 <= hd <= hr, as one
// length byte whose high nibble is bytesRequiredFor(hd) and low nibble is
// bytesRequiredFor(hr-hd), followed by the two little-endian blobs. A
// single zero byte denotes (0, 0).
func WriteCompactSequence(w io.Writer, hd, hr int64) error {
	if hr < hd {
		return fmt.Errorf("wire: hr (%d) must be >= hd (%d)", hr, hd)
	}
	if hd == 0 && hr == 0 {
		return WriteU8(w, 0)
	}
	delta := hr - hd
	bhd := bytesRequiredFor64(hd)
	bdelta := bytesRequiredFor64(delta)
	buf := make([]byte, 1, 1+int(bhd)+int(bdelta))
	buf[0] = (bhd << 4) | bdelta
	for i := byte(0); i < bhd; i++ {
		buf = append(buf, byteAt64(hd, i))
	}
	for i := byte(0); i < bdelta; i++ {
		buf = append(buf, byteAt64(delta, i))
	}
	_, err := w.Write(buf)
	return err
}

func ReadCompactSequence(r io.Reader) (hd, hr int64, err error) {
	lenByte, err := ReadU8(r)
	if err != nil {
		return 0, 0, err
	}
	if lenByte == 0 {
		return 0, 0, nil
	}
	bhd := lenByte >> 4
	bdelta := lenByte & 0x0f
	buf := make([]byte, int(bhd)+int(bdelta))
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, 0, err
	}
	hd = makeLong(buf[:bhd])
	delta := makeLong(buf[bhd:])
	return hd, hd + delta, nil
}

func makeLong(buf []byte) int64 {
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (uint(i) * 8)
	}
	return int64(v)
}

// WriteUTFString writes a nullable string as a one-byte presence flag
// followed, if present, by a two-byte big-endian length prefix and the raw
// UTF-8 bytes (the wire form emitted by java.io.DataOutputStream.writeUTF,
// except for modified UTF-8's own encodings of embedded NUL bytes and of
// characters outside the Basic Multilingual Plane, which this writer does
// not produce).
func WriteUTFString(w io.Writer, s *string) error {
	if s == nil {
		return WriteU8(w, 0)
	}
	if err := WriteU8(w, 1); err != nil {
		return err
	}
	b := []byte(*s)
	if len(b) > 0xFFFF {
		return fmt.Errorf("wire: utf string too long (%d bytes)", len(b))
	}
	if err := WriteU16(w, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadUTFString(r io.Reader) (*string, error) {
	flag, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	n, err := ReadU16(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	s := string(buf)
	return &s, nil
}

// WriteASCIIString writes a nullable string as a 16-bit signed length
// (-1 = null) followed by the raw bytes.
func WriteASCIIString(w io.Writer, s *string) error {
	if s == nil {
		return WriteI16(w, -1)
	}
	b := []byte(*s)
	if len(b) > 0x7FFF {
		return fmt.Errorf("wire: ascii string too long (%d bytes)", len(b))
	}
	if err := WriteI16(w, int16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadASCIIString(r io.Reader) (*string, error) {
	n, err := ReadI16(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	s := string(buf)
	return &s, nil
}

// WriteByteBlock writes a nullable byte slice as a one-byte presence flag
// followed, if present, by a compact int32 length and the raw bytes.
func WriteByteBlock(w io.Writer, b []byte) error {
	if b == nil {
		return WriteU8(w, 0)
	}
	if err := WriteU8(w, 1); err != nil {
		return err
	}
	if err := WriteCompactInt32(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadByteBlock(r io.Reader) ([]byte, error) {
	flag, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	n, err := ReadCompactInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("wire: negative byte block length %d", n)
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
