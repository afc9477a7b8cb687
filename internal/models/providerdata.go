package models

import (
	"strconv"

	"github.com/goccy/go-json"
)

// Fields holds provider-specific values that have no unified equivalent.
// The core never interprets them; each provider's mapper owns its own key.
type Fields map[string]any

// ProviderData keys Fields by the provider that produced them.
type ProviderData map[Provider]Fields

// Clone copies pd one level deep.
func (pd ProviderData) Clone() ProviderData {
	if pd == nil {
		return nil
	}
	out := make(ProviderData, len(pd))
	for p, f := range pd {
		out[p] = f.clone()
	}
	return out
}

// Merge returns pd with the entries of other added where pd has none.
// Existing fields in pd win.
func (pd ProviderData) Merge(other ProviderData) ProviderData {
	if len(other) == 0 {
		return pd
	}
	out := pd.Clone()
	if out == nil {
		out = make(ProviderData, len(other))
	}
	for p, f := range other {
		cur, ok := out[p]
		if !ok {
			out[p] = f.clone()
			continue
		}
		for k, v := range f {
			if _, exists := cur[k]; !exists {
				cur[k] = v
			}
		}
	}
	return out
}

// Foreign returns the entries that belong to providers other than self.
func (pd ProviderData) Foreign(self Provider) ProviderData {
	var out ProviderData
	for p, f := range pd {
		if p == self {
			continue
		}
		if out == nil {
			out = make(ProviderData)
		}
		out[p] = f.clone()
	}
	return out
}

// EncodeForeign serializes the entries not owned by self so a provider can
// store them in a private slot. An empty string means nothing to store.
func EncodeForeign(pd ProviderData, self Provider) (string, error) {
	foreign := pd.Foreign(self)
	if len(foreign) == 0 {
		return "", nil
	}
	b, err := json.Marshal(foreign)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeForeign restores entries written by EncodeForeign. Malformed input
// and any entry claiming to be self are dropped.
func DecodeForeign(raw string, self Provider) ProviderData {
	if raw == "" {
		return nil
	}
	var pd ProviderData
	if err := json.Unmarshal([]byte(raw), &pd); err != nil {
		return nil
	}
	delete(pd, self)
	if len(pd) == 0 {
		return nil
	}
	return pd
}

func (f Fields) clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the value at key as a string, or "".
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// Bool returns the value at key and whether a boolean was present.
func (f Fields) Bool(key string) (bool, bool) {
	switch v := f[key].(type) {
	case bool:
		return v, true
	case *bool:
		if v != nil {
			return *v, true
		}
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}

// Int returns the value at key as an int and whether one was present.
// JSON numbers decode as float64, so those are accepted as well.
func (f Fields) Int(key string) (int64, bool) {
	switch v := f[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Strings returns the value at key as a string slice.
func (f Fields) Strings(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
