// Package casing rewrites the keys of decoded JSON values between the store's
// snake_case and the API's camelCase.
package casing

import (
	"strings"
	"unicode"
)

// ToCamel returns v with every object key converted to camelCase. Arrays are
// walked recursively and leaves are returned unchanged.
func ToCamel(v any) any {
	return convert(v, CamelKey)
}

// ToSnake returns v with every object key converted to snake_case.
func ToSnake(v any) any {
	return convert(v, SnakeKey)
}

func convert(v any, key func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[key(k)] = convert(val, key)
		}
		return m
	case []map[string]any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = convert(val, key)
		}
		return s
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = convert(val, key)
		}
		return s
	default:
		return v
	}
}

// CamelKey converts correct_option_id to correctOptionId. Each underscore
// upper-cases the rune after it.
func CamelKey(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	upper := false
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeKey converts correctOptionId to correct_option_id. Every upper-case
// rune becomes an underscore followed by its lower-case form, so SnakeKey is
// the inverse of CamelKey for keys without underscores.
func SnakeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
