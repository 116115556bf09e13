// Package querykey builds canonical, collision-free identities for fetches.
package querykey

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidKeyShape indicates a parameter value that cannot be part of
	// a key: nested maps, slices, structs, or an empty resource/parameter
	// name. This is a programmer error and is never retried.
	ErrInvalidKeyShape = errors.New("invalid query key shape")
)

// Key is the immutable identity of one logical fetch: a resource name plus
// a canonicalized parameter set. Two keys are equal iff their canonical
// strings are byte-equal, regardless of the order parameters were supplied.
type Key struct {
	resource  string
	canonical string
}

// Build creates a Key for the given resource and parameters.
// Parameter values are restricted to strings, numbers, booleans, and nil.
// Format: qc:resource:param1=val1:param2=val2 (parameter names sorted).
//
// Example:
//
//	qc:orders:after=cur-19:first=20
func Build(resource string, params map[string]any) (Key, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return Key{}, fmt.Errorf("%w: empty resource name", ErrInvalidKeyShape)
	}

	parts := []string{"qc", url.QueryEscape(resource)}

	// Sort parameter names for determinism
	names := make([]string, 0, len(params))
	for name := range params {
		if strings.TrimSpace(name) == "" {
			return Key{}, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidKeyShape, resource)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val, err := formatValue(params[name])
		if err != nil {
			return Key{}, fmt.Errorf("%w: parameter %q of %q: %v", ErrInvalidKeyShape, name, resource, err)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(name), val))
	}

	return Key{
		resource:  resource,
		canonical: strings.Join(parts, ":"),
	}, nil
}

// MustBuild is Build for statically known parameters; it panics on an
// invalid shape.
func MustBuild(resource string, params map[string]any) Key {
	key, err := Build(resource, params)
	if err != nil {
		panic(err)
	}
	return key
}

// Resource returns the resource name the key was built for.
func (k Key) Resource() string {
	return k.resource
}

// Canonical returns the canonical serialized form of the key.
func (k Key) Canonical() string {
	return k.canonical
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.canonical
}

// IsZero reports whether the key is the zero value (never produced by Build).
func (k Key) IsZero() bool {
	return k.canonical == ""
}

// HasResource reports whether the key belongs to the given resource.
// Used for prefix-style bulk invalidation.
func (k Key) HasResource(resource string) bool {
	return k.resource == resource
}

// formatValue serializes a single scalar parameter value.
// Strings are escaped so that values containing ':' or '=' cannot collide
// with the key separator structure.
func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return url.QueryEscape(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
