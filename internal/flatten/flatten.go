package flatten

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSkipKey is the sentinel a KeyFilter returns to drop a key and its
// entire subtree from the flattened output.
var ErrSkipKey = errors.New("flatten: skip key")

// ErrNotContainer is returned when the top-level value is a bare scalar.
// Flattening needs at least one key to name a leaf, so scalar documents
// are rejected as invalid input.
var ErrNotContainer = errors.New("flatten: top-level value is not an object or array")

// KeyFilter transforms or skips keys during flattening. It is applied to
// every object key and every stringified array index, at every nesting
// level. Returning ErrSkipKey omits the key and everything under it; any
// other error aborts the whole pass.
type KeyFilter func(key string) (string, error)

// Identity is the default KeyFilter: every key passes through unchanged.
func Identity(key string) (string, error) { return key, nil }

// Flatten recurses through objects and arrays, collapsing them into a
// single-level map keyed by the path segments joined with sep. Object keys
// iterate in map order, array elements in index order. Empty containers
// contribute no entries.
func Flatten(node any, sep string, filter KeyFilter) (map[string]any, error) {
	if filter == nil {
		filter = Identity
	}
	switch node.(type) {
	case map[string]any, []any:
	default:
		return nil, ErrNotContainer
	}

	out := make(map[string]any)
	if err := walk(node, sep, filter, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(node any, sep string, filter KeyFilter, path []string, out map[string]any) error {
	switch n := node.(type) {
	case map[string]any:
		for key, child := range n {
			if err := visit(key, child, sep, filter, path, out); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range n {
			if err := visit(strconv.Itoa(i), child, sep, filter, path, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func visit(key string, child any, sep string, filter KeyFilter, path []string, out map[string]any) error {
	filtered, err := filter(key)
	if err != nil {
		if errors.Is(err, ErrSkipKey) {
			return nil
		}
		return fmt.Errorf("flatten: key filter on %q: %w", key, err)
	}
	key = filtered

	// Downstream reporting paths are filesystem-like and keyed by metric
	// name, so '/' is substituted rather than escaped.
	key = strings.ReplaceAll(key, "/", sep)

	// Full-slice append so sibling branches never share a backing array.
	next := append(path[:len(path):len(path)], key)

	switch child.(type) {
	case map[string]any, []any:
		return walk(child, sep, filter, next, out)
	default:
		out[strings.Join(next, sep)] = child
	}
	return nil
}
