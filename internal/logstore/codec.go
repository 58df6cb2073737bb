package logstore

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Value framing: uvarint headerLen | header | payload | crc32c(header|payload)
// header: ts_ms (8B BE) | flags (1B)
// payload: JSON record body, zstd-compressed when flagZstd is set.

const flagZstd byte = 1 << 0

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zdec, _ = zstd.NewReader(nil)
)

func frame(header, payload []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(header)+len(payload)+4)
	out = binary.AppendUvarint(out, uint64(len(header)))
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	return binary.BigEndian.AppendUint32(out, crc)
}

func unframe(b []byte) (header, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return nil, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, false
	}
	if int(n)+int(hlen)+4 > len(b) {
		return nil, nil, false
	}
	header = b[n : n+int(hlen)]
	payload = b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return nil, nil, false
	}
	return header, payload, true
}

// encodeRecord serializes r for storage. The id lives in the key.
func encodeRecord(r Record, compress bool) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var header [9]byte
	binary.BigEndian.PutUint64(header[:8], uint64(r.Timestamp.UnixMilli()))
	if compress {
		header[8] |= flagZstd
		body = zenc.EncodeAll(body, nil)
	}
	return frame(header[:], body), nil
}

// decodeRecord restores a record from its key suffix and stored value.
func decodeRecord(c *Cursor, val []byte) (Record, bool) {
	header, payload, ok := unframe(val)
	if !ok || len(header) < 9 {
		return Record{}, false
	}
	if header[8]&flagZstd != 0 {
		var err error
		payload, err = zdec.DecodeAll(payload, nil)
		if err != nil {
			return Record{}, false
		}
	}
	var r Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return Record{}, false
	}
	r.ID = c.ID
	r.Timestamp = time.UnixMilli(int64(binary.BigEndian.Uint64(header[:8])))
	return r, true
}
