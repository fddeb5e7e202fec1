package upstream

import (
	"encoding/json"
	"strings"
)

// TextValue decodes fields that Open Library serves either as a plain string
// or as {"type": "/type/text", "value": "..."}.
type TextValue string

func (t *TextValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = TextValue(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		*t = ""
		return nil //nolint:nilerr // unknown shapes decode as empty text
	}
	*t = TextValue(obj.Value)
	return nil
}

func (t TextValue) String() string { return string(t) }

// Named decodes list entries that are either a string or {"name": "..."}.
type Named string

func (n *Named) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Named(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		*n = ""
		return nil //nolint:nilerr // unknown shapes decode as empty
	}
	*n = Named(obj.Name)
	return nil
}

// Names flattens a Named list, dropping empty entries.
func Names(list []Named) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if s := strings.TrimSpace(string(n)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// lastSegment returns the final path element of an Open Library key or URL.
func lastSegment(s string) string {
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
