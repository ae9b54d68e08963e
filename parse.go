package jsonshrink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-json-experiment/json/jsontext"
)

// Parse decodes a single JSON value, keeping the member order of objects.
// Objects become *Object, arrays []any, numbers float64, and strings,
// booleans and null their Go equivalents. Numbers too large for a float64
// become ±Inf. When a name repeats, the last value wins and the member keeps
// the position of its first occurrence.
func Parse(data []byte) (any, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data),
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	)
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("jsonshrink: parse: %w", err)
	}
	if _, err := dec.ReadToken(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("invalid data after top-level value")
		}
		return nil, fmt.Errorf("jsonshrink: parse: %w", err)
	}
	return v, nil
}

func decodeValue(dec *jsontext.Decoder) (any, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch tok.Kind() {
	case 'n':
		return nil, nil
	case 't', 'f':
		return tok.Bool(), nil
	case '"':
		return tok.String(), nil
	case '0':
		f, err := strconv.ParseFloat(tok.String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, err
		}
		return f, nil
	case '[':
		arr := []any{}
		for dec.PeekKind() != ']' {
			elem, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		obj := NewObject()
		for dec.PeekKind() != '}' {
			name, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			// The token is only valid until the next read.
			key := name.String()
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// ShrinkJSON parses data and re-encodes it with Stringify.
func ShrinkJSON(data []byte, opts *Options) (string, error) {
	v, err := Parse(data)
	if err != nil {
		return "", err
	}
	return Stringify(v, opts)
}

// VerifiedShrinkJSON parses data and re-encodes it with VerifiedStringify.
func VerifiedShrinkJSON(data []byte, opts *Options) (string, error) {
	v, err := Parse(data)
	if err != nil {
		return "", err
	}
	return VerifiedStringify(v, opts)
}
