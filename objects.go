package gitodb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Signature is the "<name> <email> <unix-seconds> <±HHMM>" line format used
// by both the author/committer lines of a commit and the tagger line of a
// tag (§4.7 "Signed timestamp").
type Signature struct {
	Name   string
	Email  string
	Time   int64  // unix seconds
	Offset string // e.g. "+0000", as written, not parsed further
}

func parseSignature(line string) (Signature, error) {
	// "Name <email> seconds offset" — email is delimited by '<'/'>' so a
	// name containing spaces doesn't confuse the split.
	open := strings.IndexByte(line, '<')
	shut := strings.IndexByte(line, '>')
	if open < 0 || shut < 0 || shut < open {
		return Signature{}, newErr(KindCorruptObject, "malformed signature line %q", line)
	}

	name := strings.TrimSpace(line[:open])
	email := line[open+1 : shut]

	rest := strings.Fields(line[shut+1:])
	if len(rest) != 2 {
		return Signature{}, newErr(KindCorruptObject, "malformed signature timestamp in %q", line)
	}

	seconds, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Signature{}, wrapErr(KindCorruptObject, err, "parsing signature timestamp in %q", line)
	}

	return Signature{Name: name, Email: email, Time: seconds, Offset: rest[1]}, nil
}

// Commit is the decoded form of an OBJ_COMMIT payload (§4.7).
type Commit struct {
	Fingerprint Fingerprint
	Tree        Fingerprint
	Parents     []Fingerprint
	Author      Signature
	Committer   Signature
	Summary     string
	Detail      string
	Raw         []byte
}

// Tree is the decoded form of an OBJ_TREE payload (§4.7).
type Tree struct {
	Fingerprint Fingerprint
	Entries     []TreeEntry
	Raw         []byte
}

// TreeEntry is one "<octal-mode> <name>\0<20-byte-sha>" record.
type TreeEntry struct {
	Mode        string
	Name        string
	Fingerprint Fingerprint
	IsTree      bool
}

// Tag is the decoded form of an OBJ_TAG payload (§4.7). The repository
// treats multi-target tags (more than one "object" header line) as valid,
// per spec.
type Tag struct {
	Fingerprint Fingerprint
	Objects     []Fingerprint
	TargetType  string
	Name        string
	Tagger      Signature
	Summary     string
	Detail      string
	Raw         []byte
}

// Blob is an opaque byte sequence; it has no further structure.
type Blob struct {
	Fingerprint Fingerprint
	Data        []byte
}

// TypedObject is the common view §9's "dynamic typing of objects" note asks
// for: a tagged variant with a uniform Type field and Fingerprint() method
// plus a concrete field (Commit/Tree/Blob/Tag, exactly one non-nil).
type TypedObject struct {
	Type   ObjectType
	Commit *Commit
	Tree   *Tree
	Blob   *Blob
	Tag    *Tag
}

func (o TypedObject) Fingerprint() Fingerprint {
	switch o.Type {
	case TypeCommit:
		return o.Commit.Fingerprint
	case TypeTree:
		return o.Tree.Fingerprint
	case TypeBlob:
		return o.Blob.Fingerprint
	case TypeTag:
		return o.Tag.Fingerprint
	}
	return Fingerprint{}
}

// decodeObject dispatches a RawObject to its typed decoder (C8). Adapted
// from the teacher's Object() in object.go, which parsed only enough of a
// commit (tree + parents) to drive traversal; this decodes every field §4.7
// names for all four concrete types.
func decodeObject(fp Fingerprint, raw RawObject) (TypedObject, error) {
	switch raw.Type {
	case TypeCommit:
		c, err := decodeCommit(fp, raw.Data)
		if err != nil {
			return TypedObject{}, err
		}
		return TypedObject{Type: raw.Type, Commit: c}, nil
	case TypeTree:
		t, err := decodeTree(fp, raw.Data)
		if err != nil {
			return TypedObject{}, err
		}
		return TypedObject{Type: raw.Type, Tree: t}, nil
	case TypeBlob:
		return TypedObject{Type: raw.Type, Blob: &Blob{Fingerprint: fp, Data: raw.Data}}, nil
	case TypeTag:
		tg, err := decodeTag(fp, raw.Data)
		if err != nil {
			return TypedObject{}, err
		}
		return TypedObject{Type: raw.Type, Tag: tg}, nil
	default:
		return TypedObject{}, newErr(KindUnknownObjectType, "cannot decode concrete object of type %d", raw.Type)
	}
}

// parseHeaderLines splits the "<key> <value>" header block (terminated by
// a blank line) from the message/body that follows. Generalizes the
// teacher's parseLinesKV (util.go), which discarded the body; commit and
// tag decoding both need it.
func parseHeaderLines(data []byte) (headers map[string][]string, body string) {
	headers = make(map[string][]string)

	nl := []byte("\n")
	parts := bytes.SplitN(data, []byte("\n\n"), 2)
	headerBlock := parts[0]
	if len(parts) == 2 {
		body = string(parts[1])
	}

	for _, line := range bytes.Split(headerBlock, nl) {
		if len(line) == 0 {
			continue
		}
		kv := bytes.SplitN(line, []byte(" "), 2)
		if len(kv) != 2 {
			continue
		}
		key := string(kv[0])
		headers[key] = append(headers[key], string(kv[1]))
	}
	return headers, body
}

func splitSummaryDetail(body string) (summary, detail string) {
	idx := strings.IndexByte(body, '\n')
	if idx < 0 {
		return body, ""
	}
	return body[:idx], body[idx+1:]
}

func decodeCommit(fp Fingerprint, data []byte) (*Commit, error) {
	headers, body := parseHeaderLines(data)

	treeLines := headers["tree"]
	if len(treeLines) != 1 {
		return nil, newErr(KindCorruptObject, "commit %s has %d tree headers, want 1", fp, len(treeLines))
	}
	tree, err := ParseFingerprint(treeLines[0])
	if err != nil {
		return nil, err
	}

	var parents []Fingerprint
	for _, p := range headers["parent"] {
		pfp, err := ParseFingerprint(p)
		if err != nil {
			return nil, err
		}
		parents = append(parents, pfp)
	}

	author, err := oneSignature(headers, "author", fp)
	if err != nil {
		return nil, err
	}
	committer, err := oneSignature(headers, "committer", fp)
	if err != nil {
		return nil, err
	}

	summary, detail := splitSummaryDetail(body)

	return &Commit{
		Fingerprint: fp,
		Tree:        tree,
		Parents:     parents,
		Author:      author,
		Committer:   committer,
		Summary:     summary,
		Detail:      detail,
		Raw:         data,
	}, nil
}

func oneSignature(headers map[string][]string, key string, fp Fingerprint) (Signature, error) {
	lines := headers[key]
	if len(lines) != 1 {
		return Signature{}, newErr(KindCorruptObject, "object %s has %d %q headers, want 1", fp, len(lines), key)
	}
	return parseSignature(lines[0])
}

func decodeTag(fp Fingerprint, data []byte) (*Tag, error) {
	headers, body := parseHeaderLines(data)

	objectLines := headers["object"]
	if len(objectLines) == 0 {
		return nil, newErr(KindCorruptObject, "tag %s has no object header", fp)
	}
	var objects []Fingerprint
	for _, o := range objectLines {
		ofp, err := ParseFingerprint(o)
		if err != nil {
			return nil, err
		}
		objects = append(objects, ofp)
	}

	targetType := ""
	if t := headers["type"]; len(t) == 1 {
		targetType = t[0]
	}
	name := ""
	if n := headers["tag"]; len(n) == 1 {
		name = n[0]
	}

	var tagger Signature
	if t := headers["tagger"]; len(t) == 1 {
		var err error
		tagger, err = parseSignature(t[0])
		if err != nil {
			return nil, err
		}
	}

	summary, detail := splitSummaryDetail(body)

	return &Tag{
		Fingerprint: fp,
		Objects:     objects,
		TargetType:  targetType,
		Name:        name,
		Tagger:      tagger,
		Summary:     summary,
		Detail:      detail,
		Raw:         data,
	}, nil
}

// decodeTree walks "<octal-mode> <name>\0<20-byte-sha>" records. Adapted
// from the teacher's Object.Tree() (object.go), generalized from a
// hash→type map to an ordered entry slice that preserves the mode string
// and distinguishes directories from everything else by the "40000" mode
// prefix, matching the teacher's own test for tree-ness.
func decodeTree(fp Fingerprint, data []byte) (*Tree, error) {
	var entries []TreeEntry
	i := 0

	for i < len(data) {
		spaceIdx := bytes.IndexByte(data[i:], ' ')
		if spaceIdx < 0 {
			return nil, newErr(KindCorruptObject, "tree %s entry mode not terminated", fp)
		}
		spaceIdx += i

		nullIdx := bytes.IndexByte(data[spaceIdx+1:], 0)
		if nullIdx < 0 {
			return nil, newErr(KindCorruptObject, "tree %s entry name not terminated", fp)
		}
		nullIdx += spaceIdx + 1

		hashStart := nullIdx + 1
		hashEnd := hashStart + FingerprintSize
		if hashEnd > len(data) {
			return nil, newErr(KindCorruptObject, "tree %s entry fingerprint truncated", fp)
		}

		entryFp, err := fingerprintFromBytes(data[hashStart:hashEnd])
		if err != nil {
			return nil, err
		}

		mode := string(data[i:spaceIdx])
		entries = append(entries, TreeEntry{
			Mode:        mode,
			Name:        string(data[spaceIdx+1 : nullIdx]),
			Fingerprint: entryFp,
			IsTree:      strings.HasPrefix(mode, "40000"),
		})

		i = hashEnd
	}

	return &Tree{Fingerprint: fp, Entries: entries, Raw: data}, nil
}

// canonicalFraming renders the "<typename> <decimal-length>\0" || data
// framing whose fingerprint must equal the object's own name (§3's Raw
// object invariant, exercised by verifyFraming in objstore.go).
func canonicalFraming(t ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", t, len(data))
	return append([]byte(header), data...)
}
