package protocol

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/Tnze/go-mc/net/CFB8"
)

// PacketEncoder frames outbound packets into an internal buffer. Compression
// and encryption are applied according to the connection state: packets are
// framed (and possibly compressed) as they are appended, and the whole buffer
// is encrypted when it is taken.
//
// A PacketEncoder must not be shared between goroutines.
type PacketEncoder struct {
	buf       []byte
	scratch   []byte
	threshold int32
	cipher    cipher.Stream
}

// NewPacketEncoder returns an encoder with compression and encryption
// disabled.
func NewPacketEncoder() *PacketEncoder {
	return &PacketEncoder{threshold: -1}
}

// AppendPacket frames pkt and appends it to the outbound buffer.
func (e *PacketEncoder) AppendPacket(pkt Packet) error {
	body, err := pkt.Encode(e.scratch[:0])
	e.scratch = body[:0]
	if err != nil {
		return err
	}
	e.buf, err = AppendFrame(e.buf, pkt.ID(), body, e.threshold)
	return err
}

// PrependPacket frames pkt and inserts it at the front of the outbound
// buffer, before any packets already queued. Used to inject a packet that
// must reach the client first, e.g. set-compression before the login-success
// frame that triggered it.
func (e *PacketEncoder) PrependPacket(pkt Packet) error {
	body, err := pkt.Encode(e.scratch[:0])
	e.scratch = body[:0]
	if err != nil {
		return err
	}
	frame, err := AppendFrame(nil, pkt.ID(), body, e.threshold)
	if err != nil {
		return err
	}
	e.buf = append(frame, e.buf...)
	return nil
}

// AppendFrameBytes appends bytes that are already framed, such as a cached
// chunk packet.
func (e *PacketEncoder) AppendFrameBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// Take encrypts the queued bytes if encryption is enabled and returns them,
// leaving the encoder with an empty buffer.
func (e *PacketEncoder) Take() []byte {
	if e.cipher != nil {
		e.cipher.XORKeyStream(e.buf, e.buf)
	}
	out := e.buf
	e.buf = nil
	return out
}

// SetCompression sets the compression threshold. Negative disables
// compression.
func (e *PacketEncoder) SetCompression(threshold int32) {
	e.threshold = threshold
}

// EnableEncryption enables AES-128 CFB-8 encryption for all bytes taken from
// now on, including any packets already queued. The key doubles as the IV.
func (e *PacketEncoder) EnableEncryption(key []byte) error {
	if e.cipher != nil {
		return ErrEncryptionEnabled
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	e.cipher = CFB8.NewCFB8Encrypt(block, key)
	return nil
}
