package gitodb

import (
	"bufio"
	"bytes"
	"strings"
)

// GetTip resolves a branch or tag name to a fingerprint (§4.6). A name
// containing a "/" is treated as already fully qualified and searched
// verbatim; otherwise refs/heads/<name> is tried before refs/tags/<name>.
// Loose files are checked first, then packed-refs, for each candidate in
// turn — the teacher's getHead (git-advertise.go) only ever resolved HEAD's
// own ref this way and never searched more than one candidate or fell back
// to packed-refs at all, since dipakw-gits never materializes one.
func (r *Repository) GetTip(name string) (Fingerprint, error) {
	var candidates []string
	if strings.Contains(name, "/") {
		candidates = []string{name}
	} else {
		candidates = []string{"refs/heads/" + name, "refs/tags/" + name}
	}

	for _, sp := range candidates {
		stat := r.fs.Stat(sp)
		if stat[0] == fsTypeFile {
			data, err := r.fs.ReadFile(sp)
			if err != nil {
				return Fingerprint{}, wrapErr(KindIoError, err, "reading ref %q", sp)
			}
			return ParseFingerprint(strings.TrimSpace(string(data)))
		}
	}

	packed, err := r.readPackedRefs()
	if err != nil {
		return Fingerprint{}, err
	}
	for _, sp := range candidates {
		if fp, ok := packed[sp]; ok {
			return fp, nil
		}
	}

	return Fingerprint{}, newErr(KindNoSuchRef, "no ref matches %q", name)
}

// GetHead resolves HEAD (§4.6). When resolve is false and HEAD is a symbolic
// ref, the ref name itself is returned via headRef rather than a
// fingerprint; headFp is the zero fingerprint in that case. When HEAD is a
// bare 40-character hex fingerprint, it is returned as-is regardless of
// resolve.
func (r *Repository) GetHead(resolve bool) (headFp Fingerprint, headRef string, err error) {
	data, err := r.fs.ReadFile("HEAD")
	if err != nil {
		if isNotExist(err) {
			return Fingerprint{}, "", newErr(KindNoSuchRef, "HEAD not found")
		}
		return Fingerprint{}, "", wrapErr(KindIoError, err, "reading HEAD")
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "ref: ") {
		ref := strings.TrimPrefix(text, "ref: ")
		if !resolve {
			return Fingerprint{}, ref, nil
		}
		fp, err := r.GetTip(ref)
		return fp, "", err
	}

	fp, err := ParseFingerprint(text)
	if err != nil {
		return Fingerprint{}, "", err
	}
	return fp, "", nil
}

// ListRefs returns the union of every loose ref under refs/heads and
// refs/tags and every non-comment line of packed-refs, loose entries
// winning on key collision (§4.6). This is the corrected behavior the spec
// calls out explicitly: the teacher's nearest analogue doesn't have this
// bug (it never builds a merged map at all), but the open question exists
// because a sibling implementation's getRefs returns the unrelated $head
// variable instead of the merged $refs map whenever packed-refs is
// present — that bug is not reproduced here.
func (r *Repository) ListRefs() (map[string]Fingerprint, error) {
	result, err := r.readPackedRefs()
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]Fingerprint)
	}

	for _, dir := range []string{"refs/heads", "refs/tags"} {
		names, err := r.fs.Scan(dir)
		if err != nil {
			return nil, err
		}
		for name := range names {
			data, err := r.fs.ReadFile(name)
			if err != nil {
				if isNotExist(err) {
					continue
				}
				return nil, wrapErr(KindIoError, err, "reading ref %q", name)
			}
			fp, err := ParseFingerprint(strings.TrimSpace(string(data)))
			if err != nil {
				return nil, err
			}
			result[name] = fp
		}
	}

	return result, nil
}

// ListTags returns every refs/tags/* entry by its short name (§6), with the
// same loose-over-packed precedence as ListRefs, restricted to the tags
// namespace.
func (r *Repository) ListTags() (map[string]Fingerprint, error) {
	all, err := r.ListRefs()
	if err != nil {
		return nil, err
	}

	const prefix = "refs/tags/"
	tags := make(map[string]Fingerprint)
	for name, fp := range all {
		if strings.HasPrefix(name, prefix) {
			tags[strings.TrimPrefix(name, prefix)] = fp
		}
	}
	return tags, nil
}

// readPackedRefs parses packed-refs (§4.6, §9's "Reference" entry):
// "#"-prefixed lines are comments, "^<hex>" continuation lines (the peeled
// target of an annotated tag) are tolerated and skipped, everything else is
// "<hex> <refname>". A missing packed-refs file is not an error — most
// repositories with no packed refs simply lack the file.
func (r *Repository) readPackedRefs() (map[string]Fingerprint, error) {
	data, err := r.fs.ReadFile("packed-refs")
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, wrapErr(KindIoError, err, "reading packed-refs")
	}

	result := make(map[string]Fingerprint)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		fp, err := ParseFingerprint(parts[0])
		if err != nil {
			return nil, err
		}
		result[parts[1]] = fp
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapErr(KindIoError, err, "scanning packed-refs")
	}

	return result, nil
}
