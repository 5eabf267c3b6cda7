/*
	Package lossless supports the final, general-purpose compression stage applied to
	the serialized output of the interpolation compressor, along with an optional
	checksum for error checking the stored bytes.
*/
package lossless

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the format of compression for storing data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = iota
	Snappy
	LZ4
	Zstd
)

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown compression %d", uint8(compress))
	}
}

// ParseCompression returns the Compression for a name like "zstd".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "bypass", "":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown lossless compression %q", name)
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = iota
	CRC32
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "none"
	case CRC32:
		return "crc32"
	default:
		return fmt.Sprintf("unknown checksum %d", uint8(checksum))
	}
}

// ParseChecksum returns the Checksum for a name like "crc32".
func ParseChecksum(name string) (Checksum, error) {
	switch name {
	case "none", "":
		return NoChecksum, nil
	case "crc32":
		return CRC32, nil
	default:
		return NoChecksum, fmt.Errorf("unknown checksum %q", name)
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// SerializeData compresses a slice of bytes and prepends the format byte and any checksum.
// LZ4 falls back to no compression when the data can't be shrunk.
func SerializeData(data []byte, compress Compression, checksum Checksum) (s []byte, err error) {
	// Handle compression if requested
	var byteData []byte
	switch compress {
	case Uncompressed:
		byteData = data
	case Snappy:
		byteData = snappy.Encode(nil, data)
	case LZ4:
		origSize := uint32(len(data))
		byteData = make([]byte, lz4.CompressBlockBound(len(data))+4)
		binary.LittleEndian.PutUint32(byteData[0:4], origSize)
		var outSize int
		outSize, err = lz4.CompressBlock(data, byteData[4:], nil)
		if err == nil {
			if outSize == 0 {
				compress = Uncompressed
				byteData = data
			} else {
				byteData = byteData[:4+outSize]
			}
		}
	case Zstd:
		var enc *zstd.Encoder
		if enc, _, err = zstdCoders(); err == nil {
			byteData = enc.EncodeAll(data, make([]byte, 0, len(data)/2))
		}
	default:
		err = fmt.Errorf("illegal compression (%s) during serialization", compress)
	}
	if err != nil {
		return
	}

	var buffer bytes.Buffer
	buffer.Grow(len(byteData) + 5)

	// Store the requested compression and checksum
	format := EncodeSerializationFormat(compress, checksum)
	if err = binary.Write(&buffer, binary.LittleEndian, format); err != nil {
		return
	}

	// Handle checksum if requested
	switch checksum {
	case NoChecksum:
	case CRC32:
		crcChecksum := crc32.ChecksumIEEE(byteData)
		err = binary.Write(&buffer, binary.LittleEndian, crcChecksum)
	default:
		err = fmt.Errorf("illegal checksum (%s) during serialization", checksum)
	}
	if err == nil {
		// Note the actual data is written last, after any checksum so we don't have to
		// worry about length when deserializing.
		_, err = buffer.Write(byteData)
		if err == nil {
			s = buffer.Bytes()
		}
	}
	return
}

// DeserializeData deserializes a slice of bytes using stored compression, checksum.
// If uncompress parameter is false, the data is not uncompressed.
func DeserializeData(s []byte, uncompress bool) (data []byte, compress Compression, err error) {
	buffer := bytes.NewBuffer(s)

	// Get the stored compression and checksum
	var format SerializationFormat
	if err = binary.Read(buffer, binary.LittleEndian, &format); err != nil {
		return
	}
	var checksum Checksum
	compress, checksum = DecodeSerializationFormat(format)

	// Get any checksum.
	var storedCrc32 uint32
	switch checksum {
	case NoChecksum:
	case CRC32:
		err = binary.Read(buffer, binary.LittleEndian, &storedCrc32)
	default:
		err = fmt.Errorf("illegal checksum in deserializing data")
	}
	if err != nil {
		return
	}

	// Get the possibly compressed data.
	cdata := buffer.Bytes()

	// Perform any requested checksum
	if checksum == CRC32 {
		crcChecksum := crc32.ChecksumIEEE(cdata)
		if crcChecksum != storedCrc32 {
			err = fmt.Errorf("bad checksum.  Stored %x got %x", storedCrc32, crcChecksum)
			return
		}
	}

	// Uncompress if needed
	if !uncompress {
		data = cdata
		return
	}
	switch compress {
	case Uncompressed:
		data = cdata
	case Snappy:
		data, err = snappy.Decode(nil, cdata)
	case LZ4:
		if len(cdata) < 4 {
			err = fmt.Errorf("lz4 data too short (%d bytes)", len(cdata))
			return
		}
		origSize := binary.LittleEndian.Uint32(cdata[0:4])
		data = make([]byte, int(origSize))
		var n int
		n, err = lz4.UncompressBlock(cdata[4:], data)
		if err == nil && n != int(origSize) {
			err = fmt.Errorf("lz4 expected %d bytes, got %d", origSize, n)
		}
	case Zstd:
		var dec *zstd.Decoder
		if _, dec, err = zstdCoders(); err == nil {
			data, err = dec.DecodeAll(cdata, nil)
		}
	default:
		err = fmt.Errorf("illegal compression format (%d) in deserialization", compress)
	}
	if err != nil {
		data = nil
	}
	return
}

// Codec is a lossless stage with a fixed compression and checksum.
type Codec struct {
	Compression Compression
	Checksum    Checksum
}

// New returns a Codec for the named compression and checksum.
func New(compression, checksum string) (Codec, error) {
	c, err := ParseCompression(compression)
	if err != nil {
		return Codec{}, err
	}
	k, err := ParseChecksum(checksum)
	if err != nil {
		return Codec{}, err
	}
	return Codec{c, k}, nil
}

func (c Codec) Compress(data []byte) ([]byte, error) {
	return SerializeData(data, c.Compression, c.Checksum)
}

// Decompress uses the compression recorded in the data, which may differ from
// the Codec's own.
func (c Codec) Decompress(s []byte) ([]byte, error) {
	data, _, err := DeserializeData(s, true)
	return data, err
}

func (c Codec) String() string {
	return fmt.Sprintf("%s compression, %s checksum", c.Compression, c.Checksum)
}
