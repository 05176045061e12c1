package qdrant

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is an AND of payload conditions. A string value is an exact keyword
// match; a []string value matches any of its entries. Empty values are
// skipped so callers can pass optional fields through unchanged.
type Filter map[string]any

func (f Filter) toQdrant() (map[string]any, error) {
	if len(f) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]any, 0, len(keys))
	for _, key := range keys {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		switch v := f[key].(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			must = append(must, matchValue(k, v))
		case []string:
			if len(v) == 0 {
				continue
			}
			must = append(must, map[string]any{"key": k, "match": map[string]any{"any": v}})
		case bool, int, int64, float64:
			must = append(must, matchValue(k, v))
		default:
			return nil, opErr("filter", OperationErrorValidation, fmt.Sprintf("unsupported filter value for %q: %T", k, v), nil)
		}
	}
	if len(must) == 0 {
		return nil, nil
	}
	return map[string]any{"must": must}, nil
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}
