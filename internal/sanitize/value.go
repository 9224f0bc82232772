package sanitize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxDepth bounds nesting accepted by Parse.
const maxDepth = 512

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a JSON document node. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string // string text, or the literal of a number
	arr  []Value
	obj  *Object
}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is an insertion-ordered JSON object.
type Object struct {
	members []Member
	index   map[string]int
}

func NewNull() Value { return Value{} }
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }
func NewNumber(n json.Number) Value { return Value{kind: KindNumber, s: string(n)} }
func NewString(s string) Value { return Value{kind: KindString, s: s} }
func NewArray(items ...Value) Value { return Value{kind: KindArray, arr: items} }
func NewObjectValue(o *Object) Value { return Value{kind: KindObject, obj: o} }
func NewObject() *Object { return &Object{index: make(map[string]int)} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }
func (v Value) Object() (*Object, bool) {
	return v.obj, v.kind == KindObject && v.obj != nil
}

func (v Value) Number() (json.Number, bool) {
	return json.Number(v.s), v.kind == KindNumber
}

// Set stores value under key. An existing key keeps its position.
func (o *Object) Set(key string, value Value) {
	if i, ok := o.index[key]; ok {
		o.members[i].Value = value
		return
	}
	o.index[key] = len(o.members)
	o.members = append(o.members, Member{Key: key, Value: value})
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	i, ok := o.index[key]
	if !ok {
		return Value{}, false
	}
	return o.members[i].Value, true
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.members))
	for i, m := range o.members {
		keys[i] = m.Key
	}
	return keys
}

func (o *Object) Len() int { return len(o.members) }

// Parse decodes a single JSON document. Numbers keep their literal text.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("sanitize: trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("sanitize: nesting deeper than %d", maxDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("sanitize: object key is %T", keyTok)
				}
				member, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, member)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return NewObjectValue(obj), nil
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return NewArray(items...), nil
		default:
			return Value{}, fmt.Errorf("sanitize: unexpected delimiter %q", t)
		}
	case string:
		return NewString(t), nil
	case json.Number:
		return NewNumber(t), nil
	case bool:
		return NewBool(t), nil
	case nil:
		return NewNull(), nil
	default:
		return Value{}, fmt.Errorf("sanitize: unexpected token %T", tok)
	}
}

// MarshalJSON encodes v preserving object key order. HTML characters are
// written as-is.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces v with the parsed document.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.s == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.s)
		}
	case KindString:
		return encodeString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		if v.obj != nil {
			for i, m := range v.obj.members {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := encodeString(buf, m.Key); err != nil {
					return err
				}
				buf.WriteByte(':')
				if err := m.Value.encode(buf); err != nil {
					return err
				}
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("sanitize: unknown kind %d", v.kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
