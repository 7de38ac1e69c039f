package gitodb

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixture builds a throwaway repository directory, the way a test against
// the teacher's DiskFS would set one up by hand (dipakw-gits has no test
// fixtures of its own to ground this on; the shape follows C11's
// documented on-disk layout instead).
type fixture struct {
	t    *testing.T
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "objects", "pack"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "refs", "heads"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "refs", "tags"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	return &fixture{t: t, root: root}
}

func (f *fixture) open(opts ...Option) *Repository {
	f.t.Helper()
	repo, err := Open(f.root, opts...)
	require.NoError(f.t, err)
	return repo
}

func (f *fixture) writeFile(rel string, data []byte) {
	f.t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, data, 0o644))
}

// writeLoose compresses and writes a single loose object, returning its
// fingerprint.
func (f *fixture) writeLoose(t ObjectType, data []byte) Fingerprint {
	f.t.Helper()
	framing := canonicalFraming(t, data)
	fp := sha1Fingerprint(framing)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(framing)
	require.NoError(f.t, err)
	require.NoError(f.t, zw.Close())

	hexName := fp.String()
	f.writeFile(filepath.Join("objects", hexName[:2], hexName[2:]), buf.Bytes())
	return fp
}

func (f *fixture) setHeadRef(ref string) {
	f.writeFile("HEAD", []byte("ref: "+ref+"\n"))
}

func (f *fixture) setHeadDetached(fp Fingerprint) {
	f.writeFile("HEAD", []byte(fp.String()+"\n"))
}

func (f *fixture) writeLooseRef(name string, fp Fingerprint) {
	f.writeFile(name, []byte(fp.String()+"\n"))
}

func (f *fixture) writePackedRefs(lines ...string) {
	var buf bytes.Buffer
	buf.WriteString("# pack-refs with: peeled fully-peeled sorted\n")
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	f.writeFile("packed-refs", buf.Bytes())
}

// packEntry is one to-be-written pack object, addressed by its own
// fingerprint once assembled.
type packEntry struct {
	fp     Fingerprint
	offset uint32
	bytes  []byte // full on-the-wire entry: header + compressed payload
}

// packBuilder assembles a minimal, checksum-trailer-stubbed v2 pack and its
// matching v2 index, mirroring §3's "Pack entry header" and "Pack index v2"
// layouts closely enough to exercise C3/C5 without needing a real `git`
// binary to produce fixtures.
type packBuilder struct {
	entries []packEntry
	cursor  uint32
}

func newPackBuilder() *packBuilder {
	return &packBuilder{cursor: 12} // "PACK" + version(4) + count(4)
}

func encodePackHeader(t ObjectType, size uint64) []byte {
	var buf []byte
	first := byte(t&0x07)<<4 | byte(size&0x0f)
	size >>= 4
	if size > 0 {
		first |= 0x80
	}
	buf = append(buf, first)
	for size > 0 {
		b := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

// addConcrete stores a full (non-delta) commit/tree/blob/tag entry.
func (p *packBuilder) addConcrete(t ObjectType, data []byte) Fingerprint {
	fp := sha1Fingerprint(canonicalFraming(t, data))
	header := encodePackHeader(t, uint64(len(data)))
	entryBytes := append(append([]byte{}, header...), zlibCompress(data)...)

	p.entries = append(p.entries, packEntry{fp: fp, offset: p.cursor, bytes: entryBytes})
	p.cursor += uint32(len(entryBytes))
	return fp
}

// addRefDelta stores a REF_DELTA entry against baseFp, whose bytes must
// decompress to result once applied to base (the caller supplies an
// already-valid delta stream).
func (p *packBuilder) addRefDelta(baseFp Fingerprint, delta []byte, resultFp Fingerprint) {
	header := encodePackHeader(TypeRefDelta, uint64(len(delta)))
	entryBytes := append(append([]byte{}, header...), baseFp[:]...)
	entryBytes = append(entryBytes, zlibCompress(delta)...)

	p.entries = append(p.entries, packEntry{fp: resultFp, offset: p.cursor, bytes: entryBytes})
	p.cursor += uint32(len(entryBytes))
}

// addOfsDelta stores an OFS_DELTA entry whose base lies disp bytes before
// this entry's own offset.
func (p *packBuilder) addOfsDelta(disp uint32, delta []byte, resultFp Fingerprint) {
	header := encodePackHeader(TypeOfsDelta, uint64(len(delta)))
	entryBytes := append(append([]byte{}, header...), encodeOfsDeltaHeader(uint64(disp))...)
	entryBytes = append(entryBytes, zlibCompress(delta)...)

	p.entries = append(p.entries, packEntry{fp: resultFp, offset: p.cursor, bytes: entryBytes})
	p.cursor += uint32(len(entryBytes))
}

// encodeOfsDeltaHeader is the inverse of readOfsDeltaHeader (byteio.go):
// git's non-standard big-endian varint where every byte but the least
// significant chunk is implicitly biased by one.
func encodeOfsDeltaHeader(ofs uint64) []byte {
	chunks := []byte{byte(ofs & 0x7f)}
	ofs >>= 7
	for ofs != 0 {
		ofs--
		chunks = append(chunks, 0x80|byte(ofs&0x7f))
		ofs >>= 7
	}
	for i, j := 0, len(chunks)-1; i < j; i, j = i+1, j-1 {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	}
	return chunks
}

// write renders the .pack and .idx bytes and installs them under root as
// pack-<id>.{pack,idx}.
func (p *packBuilder) write(f *fixture, id string) {
	f.t.Helper()

	var pack bytes.Buffer
	pack.WriteString("PACK")
	_ = binary.Write(&pack, binary.BigEndian, uint32(2))
	_ = binary.Write(&pack, binary.BigEndian, uint32(len(p.entries)))
	for _, e := range p.entries {
		pack.Write(e.bytes)
	}
	pack.Write(make([]byte, 20)) // stubbed checksum trailer; never verified by this reader

	sorted := append([]packEntry{}, p.entries...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i].fp[:], sorted[j].fp[:]) < 0 })

	var idx bytes.Buffer
	idx.Write([]byte{0xff, 't', 'O', 'c'})
	_ = binary.Write(&idx, binary.BigEndian, uint32(2))

	var fanout [256]uint32
	for _, e := range sorted {
		fanout[e.fp[0]]++
	}
	var running uint32
	for i := 0; i < 256; i++ {
		running += fanout[i]
		fanout[i] = running
	}
	for i := 0; i < 256; i++ {
		_ = binary.Write(&idx, binary.BigEndian, fanout[i])
	}
	for _, e := range sorted {
		idx.Write(e.fp[:])
	}
	for range sorted {
		_ = binary.Write(&idx, binary.BigEndian, uint32(0)) // CRC32, unused by this reader
	}
	for _, e := range sorted {
		_ = binary.Write(&idx, binary.BigEndian, e.offset)
	}

	f.writeFile(filepath.Join("objects", "pack", fmt.Sprintf("pack-%s.pack", id)), pack.Bytes())
	f.writeFile(filepath.Join("objects", "pack", fmt.Sprintf("pack-%s.idx", id)), idx.Bytes())
}

// encodeCopyDelta and encodeInsertDelta build a minimal copy/insert opcode
// stream reconstructing result from base, used to hand-assemble pack
// fixtures without needing git's own delta compressor. Each always emits
// exactly one opcode (a single
// whole-base copy, or a single literal insert) — enough to exercise the
// interpreter's framing, not its compression quality.
func encodeCopyDelta(base []byte) []byte {
	var buf bytes.Buffer
	writeVarint(&buf, uint64(len(base)))
	writeVarint(&buf, uint64(len(base)))
	// copy op: offset=0 (no offset bytes), length = len(base) (needs length bytes unless 0x10000)
	op := byte(0x80)
	var lenBytes []byte
	n := uint64(len(base))
	if n == 0x10000 {
		// length omitted means 0x10000; nothing to encode
	} else {
		bit := byte(0x10)
		for n > 0 {
			lenBytes = append(lenBytes, byte(n&0xff))
			op |= bit
			bit <<= 1
			n >>= 8
		}
	}
	buf.WriteByte(op)
	buf.Write(lenBytes)
	return buf.Bytes()
}

func encodeInsertDelta(base, result []byte) []byte {
	var buf bytes.Buffer
	writeVarint(&buf, uint64(len(base)))
	writeVarint(&buf, uint64(len(result)))
	// result must fit in one insert opcode (<=127 bytes) for this helper.
	buf.WriteByte(byte(len(result)))
	buf.Write(result)
	return buf.Bytes()
}

func writeVarint(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}
