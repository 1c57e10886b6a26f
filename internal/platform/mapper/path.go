package mapper

import (
	"strconv"
	"strings"
)

// ============================================================================
// Path addressing
// ============================================================================
//
// A path addresses a location inside a generic nested document
// (map[string]interface{} with nested maps and []interface{} lists) using
// dot-separated segments. A segment may carry a single bracketed non-negative
// index denoting a position inside a list stored under that key:
//
//	patient.name
//	identifier[0].value
//	address[1].line[0]
//
// No wildcard, filter or slice syntax -- lists are addressed by explicit
// literal index only.

type pathSegment struct {
	key     string
	index   int  // valid only when indexed
	indexed bool
}

func parsePath(path string) ([]pathSegment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &PathError{Path: path, Reason: "empty path"}
	}
	parts := strings.Split(path, ".")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(path, part)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func parseSegment(path, part string) (pathSegment, error) {
	open := strings.IndexByte(part, '[')
	if open == -1 {
		if part == "" {
			return pathSegment{}, &PathError{Path: path, Reason: "empty segment"}
		}
		return pathSegment{key: part}, nil
	}
	if !strings.HasSuffix(part, "]") {
		return pathSegment{}, &PathError{Path: path, Reason: "unterminated index in segment " + strconv.Quote(part)}
	}
	key := part[:open]
	if key == "" {
		return pathSegment{}, &PathError{Path: path, Reason: "missing key before index in segment " + strconv.Quote(part)}
	}
	idxText := part[open+1 : len(part)-1]
	idx, err := strconv.Atoi(idxText)
	if err != nil || idx < 0 {
		return pathSegment{}, &PathError{Path: path, Reason: "invalid index " + strconv.Quote(idxText)}
	}
	return pathSegment{key: key, index: idx, indexed: true}, nil
}

// GetValue reads the value at path inside data. A missing key, an index out
// of bounds, or a value of the wrong shape at any step all resolve to nil --
// reads never fail for an absent path. Only a malformed path returns an
// error.
func GetValue(data map[string]interface{}, path string) (interface{}, error) {
	segments, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	var current interface{} = data
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		current, ok = m[seg.key]
		if !ok {
			return nil, nil
		}
		if seg.indexed {
			list, ok := current.([]interface{})
			if !ok || seg.index >= len(list) {
				return nil, nil
			}
			current = list[seg.index]
		}
	}
	return current, nil
}

// SetValue writes value at path inside data, creating intermediate maps for
// missing keys. For an indexed segment the list is created if absent and
// padded until the index exists: intermediate positions are padded with empty
// maps (so descent can continue), the final position with nils. The final
// segment performs exactly one assignment, overwriting any prior value.
func SetValue(data map[string]interface{}, path string, value interface{}) error {
	segments, err := parsePath(path)
	if err != nil {
		return err
	}

	current := data
	for _, seg := range segments[:len(segments)-1] {
		if seg.indexed {
			list := listAt(current, seg.key)
			for len(list) <= seg.index {
				list = append(list, map[string]interface{}{})
			}
			current[seg.key] = list

			next, ok := list[seg.index].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				list[seg.index] = next
			}
			current = next
			continue
		}

		next, ok := current[seg.key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[seg.key] = next
		}
		current = next
	}

	last := segments[len(segments)-1]
	if last.indexed {
		list := listAt(current, last.key)
		for len(list) <= last.index {
			list = append(list, nil)
		}
		list[last.index] = value
		current[last.key] = list
		return nil
	}
	current[last.key] = value
	return nil
}

// listAt returns the list stored under key, or a fresh empty list when the
// key is absent or holds a non-list value.
func listAt(m map[string]interface{}, key string) []interface{} {
	if list, ok := m[key].([]interface{}); ok {
		return list
	}
	return []interface{}{}
}
