package dbuswire

import (
	"encoding/binary"

	"github.com/marmos91/godbus/internal/dbuserr"
)

// ByteOrder is the single-byte endianness flag carried by every message:
// 'l' (little) or 'B' (big).
type ByteOrder byte

const (
	LittleEndian ByteOrder = 'l'
	BigEndian    ByteOrder = 'B'
)

// NativeByteOrder is the order new outbound messages are encoded in.
// D-Bus clients may pick either; little-endian matches the overwhelming
// majority of deployed hosts and peers.
const NativeByteOrder = LittleEndian

func ParseByteOrder(b byte) (ByteOrder, error) {
	switch ByteOrder(b) {
	case LittleEndian, BigEndian:
		return ByteOrder(b), nil
	default:
		return 0, dbuserr.New(dbuserr.KindMalformedMessage, "unknown byte-order flag")
	}
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Binary exposes the underlying encoding/binary.ByteOrder for callers
// outside this package that need to peek raw frame bytes before a full
// Decoder is warranted (the framer, computing frame size).
func (o ByteOrder) Binary() binary.ByteOrder { return o.binary() }
