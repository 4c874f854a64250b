// pkg/codec/detect.go
package codec

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// headerLen is how many leading bytes Match gets to look at. It covers the
// tar magic at offset 257.
const headerLen = 512

// magic is a byte signature at a fixed offset.
type magic struct {
	offset int
	sig    []byte
}

func (m magic) match(header []byte) bool {
	end := m.offset + len(m.sig)
	return len(header) >= end && bytes.Equal(header[m.offset:end], m.sig)
}

var (
	magic7z       = magic{0, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}}
	magicZip      = magic{0, []byte{'P', 'K', 0x03, 0x04}}
	magicZipEmpty = magic{0, []byte{'P', 'K', 0x05, 0x06}}
	magicRar      = magic{0, []byte{'R', 'a', 'r', '!', 0x1A, 0x07}} // v4 and v5
	magicGzip     = magic{0, []byte{0x1F, 0x8B}}
	magicZstd     = magic{0, []byte{0x28, 0xB5, 0x2F, 0xFD}}
	magicXz       = magic{0, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}}
	magicLZ4      = magic{0, []byte{0x04, 0x22, 0x4D, 0x18}}
	magicBzip2    = magic{0, []byte{'B', 'Z', 'h'}}
	magicTar      = magic{257, []byte("ustar")}
)

// compression identifies the stream compression layered over a tar or a
// bare payload.
type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionBzip2
	compressionXz
	compressionZstd
	compressionLZ4
)

func sniffCompression(header []byte) compression {
	switch {
	case magicGzip.match(header):
		return compressionGzip
	case magicZstd.match(header):
		return compressionZstd
	case magicXz.match(header):
		return compressionXz
	case magicLZ4.match(header):
		return compressionLZ4
	case magicBzip2.match(header):
		return compressionBzip2
	default:
		return compressionNone
	}
}

// sniffHeader reads the leading bytes used for format matching. Short
// files yield short headers.
func sniffHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}
