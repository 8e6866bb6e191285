package document

import (
	"fmt"
	"sort"
)

// IDField is the primary-key field of every document.
const IDField = "_id"

// Data is one document: an opaque field map identified by IDField.
type Data map[string]any

// ID returns the document id normalized to its string form.
func (d Data) ID() string {
	v, ok := d[IDField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

// WithID sets the document id in place and returns the document.
func (d Data) WithID(id string) Data {
	d[IDField] = id
	return d
}

// Clone is a shallow copy one level deep: top-level slices are copied,
// everything below is shared. Enough for repositories handing out results
// that the usecase layer mutates at the top level.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		if arr, ok := v.([]any); ok {
			copied := make([]any, len(arr))
			copy(copied, arr)
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

// StringSlice coerces a field holding []any or []string into []string.
func (d Data) StringSlice(field string) []string {
	switch v := d[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Fields returns the document's field names in sorted order.
func (d Data) Fields() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
