// Package entry flattens raw Contentful entries into template friendly values.
package entry

const (
	sysKey    = "sys"
	fieldsKey = "fields"
)

// metadataKeys are the sys attributes lifted to the top level of a normalized entry.
var metadataKeys = []string{"id", "createdAt", "updatedAt", "contentType"}

// Normalize converts a decoded entry tree into its flat form.
//
// Entries have their sys metadata (id, createdAt, updatedAt and contentType, when present) and
// their fields merged at the same level, metadata taking precedence over a field of the same name.
// The raw sys block and the fields wrapper are removed at every depth. Lists are normalized
// element-wise, and any other value is returned unchanged.
//
// Normalize never fails and is idempotent.
func Normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = Normalize(e)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for k, v := range m {
		if k == sysKey || k == fieldsKey {
			continue
		}
		out[k] = Normalize(v)
	}

	// Fields unwrap in place.
	if fields, ok := m[fieldsKey].(map[string]any); ok {
		for k, v := range normalizeMap(fields) {
			out[k] = v
		}
	}

	if sys, ok := m[sysKey].(map[string]any); ok {
		for k, v := range Metadata(sys) {
			out[k] = v
		}
	}

	return out
}

// Metadata extracts the exposed attributes of a sys block.
//
// Only attributes present in sys are returned. The contentType link is itself normalized.
func Metadata(sys map[string]any) map[string]any {
	meta := make(map[string]any, len(metadataKeys))
	for _, k := range metadataKeys {
		v, ok := sys[k]
		if !ok {
			continue
		}
		meta[k] = Normalize(v)
	}
	return meta
}

// ID returns the identifier of a raw or normalized entry, or "" if it has none.
func ID(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if sys, ok := m[sysKey].(map[string]any); ok {
		if id, ok := sys["id"].(string); ok {
			return id
		}
	}
	id, _ := m["id"].(string)
	return id
}
