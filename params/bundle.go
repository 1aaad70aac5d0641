// Package params provides Bundle, the ordered, case-insensitive parameter
// store used to describe pending query state and remote action arguments.
package params

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/castable/errors"
	"golang.org/x/text/cases"
)

// Bundle is an ordered mapping from parameter name to value. Keys are compared
// using Unicode case folding, while the casing used by the first Set is kept
// for storage and serialization.
//
// Values stored in a Bundle must be treated as immutable: helpers such as
// AppendStrings always build new slices, which lets Copy share values between
// bundles without aliasing mutable state.
type Bundle struct {
	dict *ordereddict.Dict
	fold map[string]string // folded key -> stored key
}

// New creates a Bundle from alternating key/value pairs
func New(kv ...interface{}) *Bundle {
	b := &Bundle{
		dict: ordereddict.NewDict(),
		fold: make(map[string]string),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		b.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return b
}

// FoldKey returns the case-folded form of a key
func FoldKey(key string) string {
	return cases.Fold().String(key)
}

func (b *Bundle) lazyInit() {
	if b.dict == nil {
		b.dict = ordereddict.NewDict()
		b.fold = make(map[string]string)
	}
}

// Set stores a value, keeping the casing of an existing key
func (b *Bundle) Set(key string, value interface{}) *Bundle {
	b.lazyInit()
	fk := FoldKey(key)
	if stored, ok := b.fold[fk]; ok {
		key = stored
	} else {
		b.fold[fk] = key
	}
	b.dict.Set(key, value)
	return b
}

// Get returns the value stored for key
func (b *Bundle) Get(key string) (interface{}, bool) {
	if b == nil || b.dict == nil {
		return nil, false
	}
	stored, ok := b.fold[FoldKey(key)]
	if !ok {
		return nil, false
	}
	return b.dict.Get(stored)
}

// GetDefault returns the value stored for key, or def when absent
func (b *Bundle) GetDefault(key string, def interface{}) interface{} {
	if v, ok := b.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present
func (b *Bundle) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Delete removes key, failing with a KeyNotFoundError when it is absent
func (b *Bundle) Delete(key string) error {
	if !b.Discard(key) {
		return errors.KeyNotFoundError{Key: key}
	}
	return nil
}

// Discard removes key if present and reports whether it was
func (b *Bundle) Discard(key string) bool {
	if b == nil || b.dict == nil {
		return false
	}
	fk := FoldKey(key)
	stored, ok := b.fold[fk]
	if !ok {
		return false
	}
	delete(b.fold, fk)
	b.dict.Delete(stored)
	return true
}

// Keys returns stored keys in insertion order
func (b *Bundle) Keys() []string {
	if b == nil || b.dict == nil {
		return nil
	}
	return b.dict.Keys()
}

// Len returns the number of parameters
func (b *Bundle) Len() int {
	if b == nil || b.dict == nil {
		return 0
	}
	return b.dict.Len()
}

// ForEach calls fn for each parameter in insertion order
func (b *Bundle) ForEach(fn func(key string, value interface{})) {
	for _, k := range b.Keys() {
		v, _ := b.dict.Get(k)
		fn(k, v)
	}
}

// Copy returns a shallow copy. Values are shared and must not be mutated in place.
func (b *Bundle) Copy() *Bundle {
	out := New()
	b.ForEach(func(k string, v interface{}) {
		out.Set(k, v)
	})
	return out
}

// DeepCopy returns a copy which shares no slices or nested bundles with b
func (b *Bundle) DeepCopy() *Bundle {
	out := New()
	b.ForEach(func(k string, v interface{}) {
		out.Set(k, deepCopyValue(v))
	})
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case *Bundle:
		return tv.DeepCopy()
	case []string:
		return append([]string(nil), tv...)
	case []SortSpec:
		return append([]SortSpec(nil), tv...)
	case []float64:
		return append([]float64(nil), tv...)
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i := range tv {
			out[i] = deepCopyValue(tv[i])
		}
		return out
	default:
		return v
	}
}

// Merge sets every parameter of other onto b, overwriting existing values
func (b *Bundle) Merge(other *Bundle) *Bundle {
	other.ForEach(func(k string, v interface{}) {
		b.Set(k, v)
	})
	return b
}

// Equals reports whether both bundles hold the same keys (compared
// case-insensitively, in any order) and identical values
func (b *Bundle) Equals(other *Bundle) bool {
	if b.Len() != other.Len() {
		return false
	}
	for _, k := range b.Keys() {
		ov, ok := other.Get(k)
		if !ok {
			return false
		}
		v, _ := b.Get(k)
		if !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	ab, aok := a.(*Bundle)
	bb, bok := b.(*Bundle)
	if aok || bok {
		return aok && bok && ab.Equals(bb)
	}
	return reflect.DeepEqual(a, b)
}

// Fingerprint hashes the folded keys and values of the bundle, ignoring key order
func (b *Bundle) Fingerprint() uint64 {
	d := xxhash.New()
	folded := make([]string, 0, b.Len())
	byFold := make(map[string]interface{}, b.Len())
	b.ForEach(func(k string, v interface{}) {
		fk := FoldKey(k)
		folded = append(folded, fk)
		byFold[fk] = v
	})
	sort.Strings(folded)
	for _, fk := range folded {
		_, _ = d.WriteString(fk)
		_, _ = d.WriteString("=")
		if nested, ok := byFold[fk].(*Bundle); ok {
			_, _ = fmt.Fprintf(d, "{%x}", nested.Fingerprint())
		} else {
			_, _ = fmt.Fprintf(d, "%#v", byFold[fk])
		}
		_, _ = d.WriteString(";")
	}
	return d.Sum64()
}

// Strings returns a string-list parameter. Scalar strings are returned as a
// single-element list.
func (b *Bundle) Strings(key string) []string {
	v, ok := b.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch tv := v.(type) {
	case []string:
		return tv
	case string:
		if tv == "" {
			return nil
		}
		return []string{tv}
	case []interface{}:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// String returns a scalar string parameter, or "" when absent
func (b *Bundle) String(key string) string {
	v, ok := b.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// SortSpecs returns the sort specifications stored under key
func (b *Bundle) SortSpecs(key string) []SortSpec {
	v, ok := b.Get(key)
	if !ok {
		return nil
	}
	specs, _ := v.([]SortSpec)
	return specs
}

// Nested returns a nested bundle stored under key
func (b *Bundle) Nested(key string) *Bundle {
	v, ok := b.Get(key)
	if !ok {
		return nil
	}
	nested, _ := v.(*Bundle)
	return nested
}

// AppendStrings sets key to the existing string list followed by items,
// skipping empty strings and (case-insensitively) names already present.
// A new slice is always stored.
func (b *Bundle) AppendStrings(key string, items ...string) *Bundle {
	existing := b.Strings(key)
	out := make([]string, 0, len(existing)+len(items))
	seen := make(map[string]bool, len(existing)+len(items))
	for _, s := range append(append([]string(nil), existing...), items...) {
		fs := FoldKey(s)
		if s == "" || seen[fs] {
			continue
		}
		seen[fs] = true
		out = append(out, s)
	}
	return b.Set(key, out)
}

// AppendText sets key to the existing list of text fragments followed by
// items, suppressing exact duplicates. A new slice is always stored.
func (b *Bundle) AppendText(key string, items ...string) *Bundle {
	existing := b.Strings(key)
	out := append([]string(nil), existing...)
	seen := make(map[string]bool, len(existing)+len(items))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return b.Set(key, out)
}

// MarshalJSON serializes the bundle as an ordered JSON object
func (b *Bundle) MarshalJSON() ([]byte, error) {
	if b == nil || b.dict == nil {
		return []byte("{}"), nil
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range b.Keys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		v, _ := b.dict.Get(k)
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		sb.Write(kb)
		sb.WriteByte(':')
		sb.Write(vb)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

// GoString renders the bundle in key=value form
func (b *Bundle) GoString() string {
	parts := make([]string, 0, b.Len())
	b.ForEach(func(k string, v interface{}) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	})
	return "{" + strings.Join(parts, ", ") + "}"
}
