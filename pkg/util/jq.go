package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errInvalidInput = errors.New("invalid input or empty path")
	errNoWildcard   = errors.New("no matching elements found for wildcard path")
)

// Jq resolves a dotted path like payload.after.email against a decoded JSON
// document, in the spirit of the jq CLI. A segment may carry an index
// (fields[0]) or a wildcard (fields[*]), which fans out over the array and
// flattens the per-element results.
func Jq(input map[string]any, path string) (any, error) {
	if input == nil || path == "" {
		return nil, errInvalidInput
	}
	segments := strings.Split(strings.TrimPrefix(path, "."), ".")
	return resolve(input, segments)
}

func resolve(current any, segments []string) (any, error) {
	if len(segments) == 0 {
		return current, nil
	}

	key, index, hasIndex, err := cutIndex(segments[0])
	if err != nil {
		return nil, err
	}
	rest := segments[1:]

	m, ok := current.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map at path segment: %s", key)
	}
	value, exists := m[key]
	if !exists {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if !hasIndex {
		return resolve(value, rest)
	}

	arr, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array at key: %s", key)
	}
	if index == "" || index == "*" {
		return fanOut(arr, rest)
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(arr) {
		return nil, fmt.Errorf("invalid index %s at key: %s", index, key)
	}
	return resolve(arr[i], rest)
}

// fanOut resolves the remaining path against every array element, skipping
// elements the path does not match, and flattens nested results one level.
func fanOut(arr []any, rest []string) (any, error) {
	if len(rest) == 0 {
		return arr, nil
	}

	out := make([]any, 0, len(arr))
	for _, el := range arr {
		v, err := resolve(el, rest)
		if err != nil {
			continue
		}
		if nested, ok := v.([]any); ok {
			out = append(out, nested...)
		} else {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, errNoWildcard
	}
	return out, nil
}

// cutIndex splits "fields[0]" into key and bracket content. A bare key
// reports hasIndex false.
func cutIndex(seg string) (key, index string, hasIndex bool, err error) {
	open := strings.IndexByte(seg, '[')
	if open == -1 {
		return seg, "", false, nil
	}
	end := strings.IndexByte(seg, ']')
	if end < open {
		return "", "", false, fmt.Errorf("malformed array syntax in key: %s", seg)
	}
	return seg[:open], seg[open+1 : end], true, nil
}
