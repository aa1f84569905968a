package models

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Properties holds entity attributes. Absent attributes are left out; a key mapped to nil is an
// attribute the data model requires even though no value exists.
type Properties map[string]any

// Set stores value unless it is absent: nil, an empty string, a nil pointer or a nil slice.
// Pointers are dereferenced.
func (p Properties) Set(name string, value any) Properties {
	if v, ok := present(value); ok {
		p[name] = v
	}
	return p
}

// SetNull stores an explicit null for a required attribute with no natural value.
func (p Properties) SetNull(name string) Properties {
	p[name] = nil
	return p
}

func present(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return present(rv.Elem().Interface())
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
	}
	return value, true
}

// ConvertProperties flattens a record into properties: scalars and arrays of scalars are kept,
// nested objects and arrays containing objects are dropped, absent values are omitted.
// Integral JSON numbers become int.
func ConvertProperties(record any) (Properties, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}

	props := Properties{}
	for name, value := range fields {
		switch v := value.(type) {
		case map[string]any:
			continue
		case []any:
			items, ok := scalarArray(v)
			if !ok {
				continue
			}
			props[name] = items
		case json.Number:
			props[name] = number(v)
		default:
			props.Set(name, v)
		}
	}
	return props, nil
}

func scalarArray(values []any) ([]any, bool) {
	out := make([]any, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case map[string]any, []any:
			return nil, false
		case json.Number:
			out = append(out, number(v))
		default:
			out = append(out, v)
		}
	}
	return out, true
}

func number(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	f, _ := n.Float64()
	return f
}
