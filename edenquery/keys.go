package edenquery

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/xkelxmc/eden-tanstack-query/sanitize"
)

// Kind tags a query key with the descriptor that produced it.
type Kind string

const (
	// KindAny is the wildcard kind. It is never written into a key.
	KindAny Kind = "any"
	// KindQuery tags plain queries.
	KindQuery Kind = "query"
	// KindInfinite tags infinite queries.
	KindInfinite Kind = "infinite"
)

// IsWildcard reports whether k matches every kind. The empty Kind is a wildcard.
func (k Kind) IsWildcard() bool {
	return k == "" || k == KindAny
}

type nullInput struct{}

func (nullInput) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Null is an explicit null input, embedded in keys as {"input":null}.
// An untyped nil input means no input and is dropped. Typed nil values
// (a nil map or pointer) are treated like Null.
var Null any = nullInput{}

// KeyMeta is the optional second element of a query key.
type KeyMeta struct {
	Input    any
	HasInput bool
	Type     Kind
}

// MarshalJSON encodes the meta as {"input":...,"type":...}, omitting absent fields.
func (m KeyMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.object())
}

func (m KeyMeta) object() map[string]any {
	obj := make(map[string]any, 2)
	if m.HasInput {
		obj["input"] = m.Input
	}
	if !m.Type.IsWildcard() {
		obj["type"] = string(m.Type)
	}
	return obj
}

// QueryKey identifies a cached query. Its JSON form is [path] or [path, meta].
// A path-only key is a prefix filter for every key sharing that path.
type QueryKey struct {
	Path []string
	Meta *KeyMeta
}

// Tuple returns the key as plain JSON values: []any{[]any{segments...}, meta?}.
func (k QueryKey) Tuple() []any {
	path := make([]any, len(k.Path))
	for i, s := range k.Path {
		path[i] = s
	}
	if k.Meta == nil {
		return []any{path}
	}
	return []any{path, k.Meta.object()}
}

// MarshalJSON encodes the key as a JSON array.
func (k QueryKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Tuple())
}

// Hash returns the canonical JSON of the key with object keys sorted.
// Equal keys hash equally regardless of map order or numeric type.
func (k QueryKey) Hash() (string, error) {
	data, err := canonicalize(k.Tuple())
	if err != nil {
		return "", fmt.Errorf("edenquery: hash key %s: %w", strings.Join(k.Path, "."), err)
	}
	return string(data), nil
}

// Equal reports whether k and other hash to the same value.
func (k QueryKey) Equal(other QueryKey) bool {
	a, err := k.Hash()
	if err != nil {
		return false
	}
	b, err := other.Hash()
	return err == nil && a == b
}

// String returns the canonical hash, or the path when hashing fails.
func (k QueryKey) String() string {
	if h, err := k.Hash(); err == nil {
		return h
	}
	return strings.Join(k.Path, ".")
}

// MutationKey identifies a mutation endpoint. Its JSON form is [path].
type MutationKey struct {
	Path []string
}

// Tuple returns the key as plain JSON values.
func (k MutationKey) Tuple() []any {
	return QueryKey{Path: k.Path}.Tuple()
}

// MarshalJSON encodes the key as a JSON array.
func (k MutationKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Tuple())
}

// BuildQueryKey computes the cache key for path and input.
//
// SkipToken and a missing input with a wildcard kind give a path-only key.
// Otherwise the input is normalized to plain JSON values and sanitized, and
// for KindInfinite its cursor and direction fields are dropped so every page
// shares one key.
func BuildQueryKey(path []string, input any, kind Kind) QueryKey {
	key := QueryKey{Path: clonePath(path)}
	if IsSkip(input) {
		return key
	}

	value, present := normalize(input)
	if !present && kind.IsWildcard() {
		return key
	}

	meta := &KeyMeta{}
	if present {
		value = sanitize.Value(value)
		if kind == KindInfinite {
			value = stripPageFields(value)
		}
		meta.Input, meta.HasInput = value, true
	}
	if !kind.IsWildcard() {
		meta.Type = kind
	}
	if !meta.HasInput && meta.Type == "" {
		return key
	}
	key.Meta = meta
	return key
}

// BuildMutationKey returns the path-only key of a mutation.
func BuildMutationKey(path []string) MutationKey {
	return MutationKey{Path: clonePath(path)}
}

func clonePath(path []string) []string {
	if path == nil {
		return []string{}
	}
	return slices.Clone(path)
}

// stripPageFields drops cursor and direction from an object input.
func stripPageFields(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	_, hasCursor := m["cursor"]
	_, hasDirection := m["direction"]
	if !hasCursor && !hasDirection {
		return v
	}
	out := maps.Clone(m)
	delete(out, "cursor")
	delete(out, "direction")
	return out
}

// normalize converts input to plain JSON values. The bool is false only for
// an untyped nil.
func normalize(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	return plain(v), true
}

func plain(v any) any {
	switch val := v.(type) {
	case nil, nullInput:
		return nil
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case map[string]any:
		if val == nil {
			return nil
		}
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = plain(x)
		}
		return out
	case []any:
		if val == nil {
			return nil
		}
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = plain(x)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
