package persistence

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/spikemat/spikemat/pkg/core"
)

// Binary format constants
const (
	MagicBytes    = "SMAT" // spikemat snapshot identifier
	FormatVersion = 1
)

// Header for the binary snapshot format
type Header struct {
	Magic    [4]byte
	Version  uint16
	Flags    uint16
	IDLen    uint32
	DataLen  uint64
	Checksum uint32
}

const (
	FlagCompressed uint16 = 1 << 0
)

// Snapshot is a persisted model together with its identity.
type Snapshot struct {
	ID        string      `msgpack:"id"`
	CreatedAt int64       `msgpack:"created_at"`
	Model     *core.Model `msgpack:"model"`
}

// Codec handles encoding/decoding of snapshots
type Codec struct {
	compress  bool
	compLevel int
}

// NewCodec creates a new codec
func NewCodec(compress bool) *Codec {
	return &Codec{
		compress:  compress,
		compLevel: gzip.BestSpeed,
	}
}

// Encode serializes a snapshot to binary format
func (c *Codec) Encode(snap *Snapshot) ([]byte, error) {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, err
	}

	var flags uint16
	if c.compress {
		compressed, err := c.compressData(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			data = compressed
			flags |= FlagCompressed
		}
	}

	header := Header{
		Version:  FormatVersion,
		Flags:    flags,
		IDLen:    uint32(len(snap.ID)),
		DataLen:  uint64(len(data)),
		Checksum: crc32.ChecksumIEEE(data),
	}
	copy(header.Magic[:], MagicBytes)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString(snap.ID); err != nil {
		return nil, err
	}
	if _, err := buf.Write(data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode deserializes binary format to a snapshot
func (c *Codec) Decode(raw []byte) (*Snapshot, error) {
	if len(raw) < 24 {
		return nil, errors.New("data too short")
	}

	buf := bytes.NewReader(raw)

	var header Header
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, err
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, errors.New("invalid magic bytes")
	}
	if header.Version > FormatVersion {
		return nil, errors.New("unsupported format version")
	}

	idBytes := make([]byte, header.IDLen)
	if _, err := io.ReadFull(buf, idBytes); err != nil {
		return nil, err
	}

	data := make([]byte, header.DataLen)
	if _, err := io.ReadFull(buf, data); err != nil {
		return nil, err
	}

	if crc32.ChecksumIEEE(data) != header.Checksum {
		return nil, errors.New("checksum mismatch")
	}

	if header.Flags&FlagCompressed != 0 {
		decompressed, err := c.decompressData(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.ID != string(idBytes) {
		return nil, errors.New("snapshot id mismatch")
	}

	return &snap, nil
}

// compressData compresses using gzip
func (c *Codec) compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.compLevel)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decompressData decompresses gzip data
func (c *Codec) decompressData(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// CloneModel deep-copies a model through a codec round trip, giving the
// copy fully independent storage.
func CloneModel(m *core.Model) (*core.Model, error) {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out core.Model
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
