package gitodb

import (
	"encoding/binary"
	"io"
)

// readU32BE consumes exactly 4 bytes from r and returns them as a big-endian
// uint32. Short reads surface as KindTruncated, matching every on-disk
// integer field in the pack and index formats (§3).
func readU32BE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, wrapErr(KindTruncated, err, "reading big-endian u32")
		}
		return 0, wrapErr(KindIoError, err, "reading big-endian u32")
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// readVarintLE7 reads a continuation-bit varint from buf starting at *pos,
// lowest 7 bits first, advancing *pos past the last consumed byte. This is
// the encoding used for the delta payload's base/result size fields (§3,
// §4.1). The pack entry header's size field, whose first chunk is only 4
// bits wide, is decoded separately by readPackEntryHeader (pack.go).
func readVarintLE7(buf []byte, pos *int) (uint64, error) {
	var value uint64
	var shift uint

	for {
		if *pos >= len(buf) {
			return 0, newErr(KindTruncated, "varint ran past end of buffer")
		}
		b := buf[*pos]
		*pos++
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}
}

// readOfsDeltaHeader decodes the non-standard big-endian varint used for
// OFS_DELTA's base displacement (§3 "Offset delta header"): start at -1, and
// for each byte fold in its low 7 bits after incrementing.
func readOfsDeltaHeader(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, wrapErr(KindTruncated, err, "reading ofs-delta header")
	}

	value := int64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, wrapErr(KindTruncated, err, "reading ofs-delta header")
		}
		value = ((value + 1) << 7) | int64(b&0x7f)
	}
	return value, nil
}
