// Package sanitize strips NoSQL-operator and markup injection payloads from
// request input before handlers see it.
//
// Every string reached through an object is rewritten: "$" characters are
// removed, then "<" and ">" are HTML-escaped unless the remaining text contains
// "@" or starts with "http". Keys in the exemption set are skipped wherever they
// appear. Arrays, numbers, booleans and nulls are left alone.
package sanitize

import (
	"net/url"
	"strings"
)

// KeySet is a set of field names the sanitizer leaves untouched.
type KeySet map[string]struct{}

// Keys builds a KeySet.
func Keys(names ...string) KeySet {
	set := make(KeySet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether name is exempt.
func (s KeySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// DefaultExempt covers the email, credential and URL-bearing fields.
var DefaultExempt = Keys("email", "username", "password", "mediaUrl", "profilePicture")

var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Clean applies the string rule to a single value.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "$", "")
	if !strings.Contains(s, "@") && !strings.HasPrefix(s, "http") {
		s = angleEscaper.Replace(s)
	}
	return s
}

// Sanitize rewrites v in place and returns it. Values other than objects are
// returned unchanged.
func Sanitize(v Value, exempt KeySet) Value {
	if obj, ok := v.Object(); ok {
		sanitizeObject(obj, exempt)
	}
	return v
}

func sanitizeObject(obj *Object, exempt KeySet) {
	for i := range obj.members {
		m := &obj.members[i]
		if exempt.Has(m.Key) {
			continue
		}
		switch m.Value.kind {
		case KindString:
			m.Value.s = Clean(m.Value.s)
		case KindObject:
			if m.Value.obj != nil {
				sanitizeObject(m.Value.obj, exempt)
			}
		}
	}
}

// Form rewrites every value of a urlencoded form whose field is not exempt.
func Form(values url.Values, exempt KeySet) url.Values {
	for key, vals := range values {
		if exempt.Has(key) {
			continue
		}
		for i := range vals {
			vals[i] = Clean(vals[i])
		}
	}
	return values
}
