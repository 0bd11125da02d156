package anvil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/go-mclib/server/pkg/chunk"
)

// A region file stores a 32x32 chunk area. The header is two 4 KiB sectors:
// 1024 big-endian (offset:u24, length:u8) sector locations followed by 1024
// big-endian u32 last-modified timestamps.
const (
	sectorSize   = 4096
	regionChunks = 32 * 32
)

// Chunk payload compression schemes.
const (
	compressionGzip = 1
	compressionZlib = 2
	compressionNone = 3
)

// Region is an open region file. It is owned by a single worker and performs
// no locking.
type Region struct {
	f         *os.File
	locations [regionChunks]uint32 // offset in sectors << 8 | length in sectors
	stamps    [regionChunks]uint32
}

// RegionPath returns the path of the region file containing pos, below the
// given world root.
func RegionPath(worldRoot string, pos chunk.RegionPos) string {
	return filepath.Join(worldRoot, "region", fmt.Sprintf("r.%d.%d.mca", pos.X, pos.Z))
}

// OpenRegion opens a region file and reads its header.
func OpenRegion(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var header [2 * sectorSize]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading region header: %w", err)
	}

	r := &Region{f: f}
	for i := 0; i < regionChunks; i++ {
		r.locations[i] = binary.BigEndian.Uint32(header[i*4:])
		r.stamps[i] = binary.BigEndian.Uint32(header[sectorSize+i*4:])
	}
	return r, nil
}

// Close closes the underlying file.
func (r *Region) Close() error { return r.f.Close() }

// Timestamp returns when the chunk at pos was last modified, in seconds
// since the epoch, or zero if the region has no such chunk.
func (r *Region) Timestamp(pos chunk.Pos) uint32 {
	return r.stamps[chunkIndex(pos)]
}

// Chunk reads and decompresses the NBT payload of the chunk at pos. A nil
// payload with a nil error means the region has no chunk at that position.
func (r *Region) Chunk(pos chunk.Pos) ([]byte, error) {
	loc := r.locations[chunkIndex(pos)]
	if loc == 0 {
		return nil, nil
	}
	offset := int64(loc>>8) * sectorSize
	maxLen := int64(loc&0xff) * sectorSize

	var head [5]byte
	if _, err := r.f.ReadAt(head[:], offset); err != nil {
		return nil, fmt.Errorf("reading chunk header: %w", err)
	}
	payloadLen := binary.BigEndian.Uint32(head[:4])
	if payloadLen < 1 || int64(payloadLen)+4 > maxLen {
		return nil, fmt.Errorf("chunk payload length %d exceeds its %d allocated sectors", payloadLen, loc&0xff)
	}
	scheme := head[4]

	compressed := make([]byte, payloadLen-1)
	if _, err := r.f.ReadAt(compressed, offset+5); err != nil {
		return nil, fmt.Errorf("reading chunk payload: %w", err)
	}

	switch scheme {
	case compressionGzip:
		z, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("chunk gzip payload: %w", err)
		}
		defer z.Close()
		return io.ReadAll(z)
	case compressionZlib:
		z, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("chunk zlib payload: %w", err)
		}
		defer z.Close()
		return io.ReadAll(z)
	case compressionNone:
		return compressed, nil
	default:
		return nil, fmt.Errorf("unknown chunk compression scheme %d", scheme)
	}
}

func chunkIndex(pos chunk.Pos) int {
	return int(pos.X&31) + int(pos.Z&31)*32
}
