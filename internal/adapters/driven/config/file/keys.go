package file

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// flattenMap converts nested maps and lists to dot-notation keys.
// E.g., {"a": {"b": [1, 2]}} becomes {"a.b[0]": 1, "a.b[1]": 2}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)
	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		flattenValue(result, fullKey, value)
	}
	return result
}

func flattenValue(result map[string]any, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, nested := range flattenMap(v, key) {
			result[k] = nested
		}
	case []any:
		if len(v) == 0 {
			result[key] = v
			return
		}
		for i, item := range v {
			flattenValue(result, fmt.Sprintf("%s[%d]", key, i), item)
		}
	default:
		result[key] = value
	}
}

// segment is one step of a flattened key: a map key or a list index.
type segment struct {
	key   string
	index int
	list  bool
}

// parseKey splits "connectors[0].sub-folders.INVOICE" into its segments.
func parseKey(key string) ([]segment, error) {
	var segments []segment
	for _, part := range strings.Split(key, ".") {
		name := part
		var indices []int
		for strings.HasSuffix(name, "]") {
			open := strings.LastIndex(name, "[")
			if open < 0 {
				return nil, fmt.Errorf("malformed key %q", key)
			}
			n, err := strconv.Atoi(name[open+1 : len(name)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("malformed index in key %q", key)
			}
			indices = append([]int{n}, indices...)
			name = name[:open]
		}
		if name == "" {
			return nil, fmt.Errorf("empty segment in key %q", key)
		}
		segments = append(segments, segment{key: name})
		for _, n := range indices {
			segments = append(segments, segment{index: n, list: true})
		}
	}
	return segments, nil
}

// unflatten rebuilds a nested tree from dot-notation keys. Keys are applied
// in sorted order so list indices grow predictably.
func unflatten(flat map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var root any = map[string]any{}
	for _, k := range keys {
		segments, err := parseKey(k)
		if err != nil {
			return nil, err
		}
		root, err = setPath(root, segments, flat[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	return root.(map[string]any), nil
}

// setPath stores value at segments below node and returns the updated node.
func setPath(node any, segments []segment, value any) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}
	seg := segments[0]

	if seg.list {
		list, ok := node.([]any)
		if !ok {
			if node != nil {
				return nil, fmt.Errorf("conflicting types: expected a list")
			}
			list = nil
		}
		for len(list) <= seg.index {
			list = append(list, nil)
		}
		child, err := setPath(list[seg.index], segments[1:], value)
		if err != nil {
			return nil, err
		}
		list[seg.index] = child
		return list, nil
	}

	m, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("conflicting types: expected a map")
		}
		m = map[string]any{}
	}
	child, err := setPath(m[seg.key], segments[1:], value)
	if err != nil {
		return nil, err
	}
	m[seg.key] = child
	return m, nil
}

// resolveScalar converts a raw string from a flat source into a typed value.
// Only values that format back to the exact same text become numbers, so
// strings such as "007" are kept intact.
func resolveScalar(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && strconv.FormatInt(n, 10) == raw {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == raw {
		return f
	}
	return raw
}

// envName maps a configuration key to its environment variable name:
// "api.client-secret" with prefix "EXCHANGE" becomes "EXCHANGE_API_CLIENT_SECRET".
func envName(prefix, key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", "[", "_", "]", "")
	name := strings.ToUpper(replacer.Replace(key))
	if prefix == "" {
		return name
	}
	return strings.ToUpper(prefix) + "_" + name
}
