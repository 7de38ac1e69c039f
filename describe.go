package gitodb

import (
	"fmt"
)

const defaultAbbrev = 7

// Describe finds the closest reachable annotated tag from start via
// breadth-first search through commit parents (§4.8). abbrev<=0 selects the
// default of 7 hex characters.
//
// Grounded on the teacher's traverse.go, which walks the same commit→parent
// edges for negotiation's "have" set — that walker is a DFS-via-recursion
// over a caller-supplied frontier with no tag-labelling concept at all;
// this is a breadth-first rewrite purpose-built for nearest-tag distance,
// which only BFS (not the teacher's traversal order) can report correctly.
func (r *Repository) Describe(start Fingerprint, abbrev int) (string, error) {
	if abbrev <= 0 {
		abbrev = defaultAbbrev
	}

	tagByTarget, err := r.tagTargets()
	if err != nil {
		return "", err
	}

	type frame struct {
		fp    Fingerprint
		depth int
	}

	queue := []frame{{fp: start, depth: 0}}
	seen := map[Fingerprint]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if tagName, ok := tagByTarget[cur.fp]; ok {
			return formatDescribe(tagName, cur.depth, start, abbrev), nil
		}

		obj, err := r.GetObject(cur.fp)
		if err != nil {
			return "", err
		}
		if obj.Type != TypeCommit {
			continue
		}

		for _, parent := range obj.Commit.Parents {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			queue = append(queue, frame{fp: parent, depth: cur.depth + 1})
		}
	}

	return start.String()[:abbrev], nil
}

// tagTargets builds the target-fingerprint → tag-name map (§4.8 step 1) by
// loading every annotated tag under refs/tags and recording its object
// target(s). Lightweight tags — a ref whose object is a commit/tree/blob
// rather than a tag object — carry no annotation and are not candidates.
func (r *Repository) tagTargets() (map[Fingerprint]string, error) {
	tags, err := r.ListTags()
	if err != nil {
		return nil, err
	}

	result := make(map[Fingerprint]string, len(tags))
	for name, fp := range tags {
		obj, err := r.GetObject(fp)
		if err != nil {
			return nil, err
		}
		if obj.Type != TypeTag {
			continue
		}
		for _, target := range obj.Tag.Objects {
			result[target] = name
		}
	}
	return result, nil
}

func formatDescribe(tagName string, depth int, start Fingerprint, abbrev int) string {
	if depth == 0 {
		return tagName
	}
	return fmt.Sprintf("%s-%d-g%s", tagName, depth, start.String()[:abbrev])
}
