package docdata

import (
	"sort"
	"strings"
)

// FlattenSchemaNames merges raw schemaName values read from the store into
// one sorted list without duplicates. Each raw entry may be a JSON string or
// an array of strings; anything else is ignored.
func FlattenSchemaNames(raws [][]byte) []string {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(raws))
	for _, raw := range raws {
		if len(raw) == 0 {
			continue
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			continue
		}
		for _, name := range schemaNamesOf(v) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func schemaNamesOf(v Value) []string {
	switch v.Kind() {
	case KindString:
		if name := strings.TrimSpace(v.str); name != "" {
			return []string{name}
		}
	case KindArray:
		var out []string
		for _, item := range v.arr {
			if s, ok := item.AsString(); ok {
				if name := strings.TrimSpace(s); name != "" {
					out = append(out, name)
				}
			}
		}
		return out
	}
	return nil
}
