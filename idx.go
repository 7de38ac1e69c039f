package gitodb

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
)

var idxMagicV2 = [4]byte{0xff, 't', 'O', 'c'}

const (
	fanoutEntries = 256
	fanoutSize    = fanoutEntries * 4
	v1HeaderSize  = fanoutSize       // v1 has no magic/version, fanout starts at 0
	v2HeaderSize  = 8 + fanoutSize   // magic(4) + version(4) + fanout(1024)
)

// findInPack locates fingerprint inside one pack's .idx file (C3). It
// returns (offset, true, nil) on a hit, (0, false, nil) on a clean miss —
// including the pack's .idx having vanished out from under us, which §5
// requires treating as "this pack contributes no match" rather than a fatal
// error — and a non-nil error when the index cannot be opened, locked or
// read, is truncated, has an unsupported version, or needs the 64-bit
// offset table.
//
// Grounded on the teacher's variable-width header parsing style (util.go)
// generalized to the two index layouts in §3, and on the fanout-then-
// binary-search shape used throughout the retrieval pack (e.g.
// other_examples/ahrav-go-gitpack__idx.go, other_examples/odvcencio-got__pack_index_reader.go).
func findInPack(root string, packID string, fp Fingerprint) (offset uint64, found bool, err error) {
	path := filepath.Join(root, "objects", "pack", "pack-"+packID+".idx")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, wrapErr(KindIoError, err, "opening %q", path)
	}
	defer f.Close()

	unlock, err := sharedLock(f.Fd())
	if err != nil {
		return 0, false, wrapErr(KindIoError, err, "locking %q", path)
	}
	defer unlock()

	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q magic", path)
	}

	if magic == idxMagicV2 {
		return findInPackV2(f, path, fp)
	}
	return findInPackV1(f, path, fp)
}

func readU32At(r *os.File, offset int64) (uint32, error) {
	var buf [4]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func fanoutWindow(f *os.File, fanoutBase int64, b byte) (lo, hi uint32, err error) {
	hi, err = readU32At(f, fanoutBase+int64(b)*4)
	if err != nil {
		return 0, 0, err
	}
	if b > 0 {
		lo, err = readU32At(f, fanoutBase+int64(b-1)*4)
		if err != nil {
			return 0, 0, err
		}
	}
	return lo, hi, nil
}

// findInPackV1 implements §4.2 for the v1 layout: 256 fanout u32s at offset
// 0, then N records of (4-byte offset, 20-byte fingerprint) sorted by
// fingerprint, each record 24 bytes wide.
func findInPackV1(f *os.File, path string, fp Fingerprint) (uint64, bool, error) {
	lo, hi, err := fanoutWindow(f, 0, fp[0])
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q fanout", path)
	}
	if lo == hi {
		return 0, false, nil
	}

	recordAt := func(i uint32) (name [FingerprintSize]byte, off uint32, err error) {
		base := int64(v1HeaderSize) + int64(i)*24
		var rec [24]byte
		if _, err := f.ReadAt(rec[:], base); err != nil {
			return name, 0, err
		}
		off = binary.BigEndian.Uint32(rec[:4])
		copy(name[:], rec[4:])
		return name, off, nil
	}

	i, ok, err := binarySearchNames(lo, hi, func(i uint32) ([FingerprintSize]byte, error) {
		name, _, err := recordAt(i)
		return name, err
	}, fp)
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "searching %q", path)
	}
	if !ok {
		return 0, false, nil
	}

	_, off, err := recordAt(i)
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q match", path)
	}
	return uint64(off), true, nil
}

// findInPackV2 implements §4.2 for the v2 layout: magic+version(8), 256
// fanout u32s, N fingerprints, N CRC32s (unused), N offsets, optional
// 64-bit offset table (rejected per §3/§7 KindUnsupportedLargePack).
func findInPackV2(f *os.File, path string, fp Fingerprint) (uint64, bool, error) {
	version, err := readU32At(f, 4)
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q version", path)
	}
	if version != 2 {
		return 0, false, newErr(KindUnsupportedIndex, "%q has unsupported index version %d", path, version)
	}

	lo, hi, err := fanoutWindow(f, 8, fp[0])
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q fanout", path)
	}
	if lo == hi {
		return 0, false, nil
	}

	n, err := readU32At(f, 8+int64(fanoutEntries-1)*4)
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q object count", path)
	}

	nameBase := int64(v2HeaderSize)
	offsetBase := nameBase + int64(n)*FingerprintSize + int64(n)*4 // skip names, skip CRCs

	nameAt := func(i uint32) ([FingerprintSize]byte, error) {
		var name [FingerprintSize]byte
		_, err := f.ReadAt(name[:], nameBase+int64(i)*FingerprintSize)
		return name, err
	}

	i, ok, err := binarySearchNames(lo, hi, nameAt, fp)
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "searching %q", path)
	}
	if !ok {
		return 0, false, nil
	}

	rawOffset, err := readU32At(f, offsetBase+int64(i)*4)
	if err != nil {
		return 0, false, wrapErr(KindTruncated, err, "reading %q offset", path)
	}
	if rawOffset&0x80000000 != 0 {
		return 0, false, newErr(KindUnsupportedLargePack, "%q entry %d needs the 64-bit offset table", path, i)
	}

	return uint64(rawOffset), true, nil
}

// binarySearchNames performs the O(log N) search §4.2 step 5 requires over
// the sorted fingerprint window [lo, hi).
func binarySearchNames(lo, hi uint32, nameAt func(uint32) ([FingerprintSize]byte, error), target Fingerprint) (uint32, bool, error) {
	for lo < hi {
		mid := lo + (hi-lo)/2
		name, err := nameAt(mid)
		if err != nil {
			return 0, false, err
		}
		cmp := bytes.Compare(name[:], target[:])
		switch {
		case cmp == 0:
			return mid, true, nil
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false, nil
}
