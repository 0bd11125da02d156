package protocol

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
)

// Packet is an outbound packet that knows its id and how to encode its body.
type Packet interface {
	// ID returns the packet id within its connection state.
	ID() int32
	// Encode appends the packet body (without the id) to dst.
	Encode(dst []byte) ([]byte, error)
}

// Frame is a single decoded packet frame: the packet id and the raw body
// bytes that follow it.
type Frame struct {
	ID   int32
	Body []byte
}

// AppendFrame appends the length-prefixed frame for a packet with the given
// id and body to dst. With threshold >= 0 the compressed framing is used and
// the id+body payload is zlib-compressed when it is at least threshold bytes
// long; threshold = -1 selects the uncompressed framing.
func AppendFrame(dst []byte, id int32, body []byte, threshold int32) ([]byte, error) {
	dataLen := VarIntLen(id) + len(body)

	if threshold < 0 {
		if dataLen > MaxPacketSize {
			return dst, ErrOversizedPacket
		}
		dst = AppendVarInt(dst, int32(dataLen))
		dst = AppendVarInt(dst, id)
		return append(dst, body...), nil
	}

	if dataLen >= int(threshold) {
		var compressed bytes.Buffer
		z := zlib.NewWriter(&compressed)
		data := AppendVarInt(make([]byte, 0, dataLen), id)
		data = append(data, body...)
		if _, err := z.Write(data); err != nil {
			return dst, err
		}
		if err := z.Close(); err != nil {
			return dst, err
		}

		packetLen := VarIntLen(int32(dataLen)) + compressed.Len()
		if packetLen > MaxPacketSize {
			return dst, ErrOversizedPacket
		}
		dst = AppendVarInt(dst, int32(packetLen))
		dst = AppendVarInt(dst, int32(dataLen))
		return append(dst, compressed.Bytes()...), nil
	}

	// Below the threshold the payload goes out raw, with a zero data length
	// marking it as uncompressed.
	packetLen := 1 + dataLen
	if packetLen > MaxPacketSize {
		return dst, ErrOversizedPacket
	}
	dst = AppendVarInt(dst, int32(packetLen))
	dst = append(dst, 0)
	dst = AppendVarInt(dst, id)
	return append(dst, body...), nil
}
