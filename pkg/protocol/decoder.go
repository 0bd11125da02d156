package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/Tnze/go-mc/net/CFB8"
	"github.com/klauspost/compress/zlib"
)

// PacketDecoder assembles inbound bytes into packet frames. Bytes are
// decrypted in place as they arrive, so partially received frames carry
// forward between calls without re-decryption.
//
// A PacketDecoder must not be shared between goroutines.
type PacketDecoder struct {
	// buf holds inbound data. Its front is always the start of the next
	// frame; the first `decrypted` bytes have been run through the cipher.
	buf         []byte
	decrypted   int
	cipher      cipher.Stream
	compression bool
	decompress  []byte
}

// NewPacketDecoder returns a decoder with compression and encryption
// disabled.
func NewPacketDecoder() *PacketDecoder {
	return &PacketDecoder{}
}

// QueueBytes appends raw bytes received from the transport.
func (d *PacketDecoder) QueueBytes(b []byte) {
	d.buf = append(d.buf, b...)
	if d.cipher != nil {
		d.cipher.XORKeyStream(d.buf[d.decrypted:], d.buf[d.decrypted:])
		d.decrypted = len(d.buf)
	}
}

// TryNextPacket returns the next complete frame, or nil if more bytes are
// needed. It never blocks. The returned frame borrows the decoder's internal
// storage and is only valid until the next QueueBytes or TryNextPacket call.
//
// Errors are fatal for the connection: a malformed length VarInt, an
// oversized frame, or a decompression failure.
func (d *PacketDecoder) TryNextPacket() (*Frame, error) {
	packetLen, n, err := DecodeVarInt(d.buf)
	if err == ErrIncomplete {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if packetLen < 0 || packetLen > MaxPacketSize {
		return nil, ErrOversizedPacket
	}
	if len(d.buf)-n < int(packetLen) {
		return nil, nil
	}

	contents := d.buf[n : n+int(packetLen)]
	d.buf = d.buf[n+int(packetLen):]
	if d.decrypted = d.decrypted - n - int(packetLen); d.decrypted < 0 {
		d.decrypted = 0
	}

	if d.compression {
		dataLen, m, err := DecodeVarInt(contents)
		if err != nil {
			return nil, err
		}
		contents = contents[m:]

		if dataLen < 0 || dataLen > MaxPacketSize {
			return nil, ErrOversizedPacket
		}
		if dataLen != 0 {
			contents, err = d.inflate(contents, int(dataLen))
			if err != nil {
				return nil, err
			}
		}
	}

	id, m, err := DecodeVarInt(contents)
	if err != nil {
		return nil, err
	}
	return &Frame{ID: id, Body: contents[m:]}, nil
}

// inflate decompresses exactly want bytes into the scratch buffer.
func (d *PacketDecoder) inflate(compressed []byte, want int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &DecompressionError{Err: err}
	}
	defer r.Close()

	if cap(d.decompress) < want {
		d.decompress = make([]byte, want)
	}
	d.decompress = d.decompress[:want]

	if _, err := io.ReadFull(r, d.decompress); err != nil {
		return nil, &DecompressionError{Err: err}
	}
	// The declared length must match the stream exactly.
	if n, _ := r.Read(make([]byte, 1)); n != 0 {
		return nil, &DecompressionError{Err: io.ErrShortBuffer}
	}
	return d.decompress, nil
}

// SetCompression toggles the compressed framing for inbound packets.
func (d *PacketDecoder) SetCompression(enabled bool) {
	d.compression = enabled
}

// EnableEncryption enables AES-128 CFB-8 decryption, decrypting any bytes
// already queued. The key doubles as the IV.
func (d *PacketDecoder) EnableEncryption(key []byte) error {
	if d.cipher != nil {
		return ErrEncryptionEnabled
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	d.cipher = CFB8.NewCFB8Decrypt(block, key)
	d.cipher.XORKeyStream(d.buf, d.buf)
	d.decrypted = len(d.buf)
	return nil
}
