package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Value is a node of a decoded JSON document. It is one of Scalar, Object or Array.
type Value interface {
	isValue()
}

type ScalarKind uint8

const (
	NullKind ScalarKind = iota
	BoolKind
	NumberKind
	StringKind
)

// Scalar holds a leaf value along with the text it is matched against.
type Scalar struct {
	Kind ScalarKind
	Text string
}

// Member is a key/value pair of an Object, kept in document order.
type Member struct {
	Key   string
	Value Value
}

type Object []Member

type Array []Value

func (Scalar) isValue() {}
func (Object) isValue() {}
func (Array) isValue()  {}

// Get returns the value of the first member named key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func String(s string) Scalar {
	return Scalar{Kind: StringKind, Text: s}
}

func Number(n string) Scalar {
	return Scalar{Kind: NumberKind, Text: n}
}

func Bool(b bool) Scalar {
	return Scalar{Kind: BoolKind, Text: strconv.FormatBool(b)}
}

func Null() Scalar {
	return Scalar{Kind: NullKind, Text: "null"}
}

var ErrTrailingData = errors.New("unexpected data after top-level value")

// Parse decodes a single JSON document.
func Parse(data []byte) (Value, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads exactly one JSON document from r.
func Decode(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, ErrTrailingData
	}

	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	obj := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not a string", tok)
		}

		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj = append(obj, Member{Key: key, Value: v})
	}

	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := Array{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
