// Package byteorder wraps encoding/binary for the one order the lobby wire
// format ever uses. Unlike a network protocol's usual big-endian ("network
// byte order") framing, Cossacks 3's lobby packets are little-endian
// end-to-end, a legacy of the original Windows client reading packets as
// raw struct memory.
package byteorder

import "encoding/binary"

func PutU16(buf []byte, val uint16) {
	binary.LittleEndian.PutUint16(buf, val)
}

func U16(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

func PutU32(buf []byte, val uint32) {
	binary.LittleEndian.PutUint32(buf, val)
}

func U32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}
