package cms

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// EntryCollection is one page of entries returned by the API.
type EntryCollection struct {
	Total int
	Skip  int
	Limit int

	// Items are the raw entries, in response order, with their links resolved.
	Items []any

	raw []byte
}

type response struct {
	Total    int   `json:"total"`
	Skip     int   `json:"skip"`
	Limit    int   `json:"limit"`
	Items    []any `json:"items"`
	Includes struct {
		Entry []any `json:"Entry"`
		Asset []any `json:"Asset"`
	} `json:"includes"`
}

// ParseEntries decodes an entries response body.
//
// Links to entries and assets found in the response are replaced by a copy of their target, up to
// includeLevel levels deep. Deeper or unknown links are left as link objects.
func ParseEntries(raw []byte, includeLevel int) (*EntryCollection, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("couldn't parse entries response: %v", err)
	}

	res := newResolver()
	res.index("Entry", r.Items)
	res.index("Entry", r.Includes.Entry)
	res.index("Asset", r.Includes.Asset)

	items := make([]any, len(r.Items))
	for i, item := range r.Items {
		items[i] = res.resolveEntry(item, includeLevel)
	}

	return &EntryCollection{
		Total: r.Total,
		Skip:  r.Skip,
		Limit: r.Limit,
		Items: items,
		raw:   raw,
	}, nil
}

// FirstField returns the name and resolved value of the first field, in document order, of item i.
func (c *EntryCollection) FirstField(i int) (name string, value any, ok bool) {
	if i < 0 || i >= len(c.Items) {
		return "", nil, false
	}

	gjson.GetBytes(c.raw, "items."+strconv.Itoa(i)+".fields").ForEach(func(key, _ gjson.Result) bool {
		name = key.String()
		return false
	})
	if name == "" {
		return "", nil, false
	}

	item, _ := c.Items[i].(map[string]any)
	fields, _ := item["fields"].(map[string]any)
	value, ok = fields[name]
	return name, value, ok
}

type resolver struct {
	targets map[string]map[string]any
}

func newResolver() *resolver {
	return &resolver{targets: make(map[string]map[string]any)}
}

func (r *resolver) index(linkType string, entries []any) {
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		sys, _ := m["sys"].(map[string]any)
		id, _ := sys["id"].(string)
		if id == "" {
			continue
		}
		r.targets[linkType+":"+id] = m
	}
}

// target returns the entry or asset v links to.
func (r *resolver) target(v map[string]any) (map[string]any, bool) {
	sys, ok := v["sys"].(map[string]any)
	if !ok || sys["type"] != "Link" {
		return nil, false
	}
	linkType, _ := sys["linkType"].(string)
	id, _ := sys["id"].(string)
	t, ok := r.targets[linkType+":"+id]
	return t, ok
}

// resolveEntry copies an entry, resolving the links held in its fields.
func (r *resolver) resolveEntry(v any, depth int) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	out := make(map[string]any, len(m))
	for k, e := range m {
		if k == "fields" {
			out[k] = r.resolve(e, depth)
			continue
		}
		out[k] = e
	}
	return out
}

func (r *resolver) resolve(v any, depth int) any {
	switch v := v.(type) {
	case map[string]any:
		if t, ok := r.target(v); ok {
			if depth <= 0 {
				return v
			}
			return r.resolveEntry(t, depth-1)
		}
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = r.resolve(e, depth)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = r.resolve(e, depth)
		}
		return out
	default:
		return v
	}
}
