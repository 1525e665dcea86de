/*
Copyright (c) European XFEL GmbH and the karabo-bridge-go contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import (
	"fmt"

	"github.com/european-xfel/karabo-bridge-go/value"
)

// valueToGo converts a scalar/list/map Value into the plain interface{}
// shape vmihailenco/msgpack marshals natively. Array-kind values are never
// passed in here: they travel on their own header/payload frame pair and
// are stripped from the property bag before encoding.
func valueToGo(v value.Value) (interface{}, error) {
	switch v.Kind {
	case value.KindNil:
		return nil, nil
	case value.KindBool:
		return v.Bool, nil
	case value.KindInt:
		return v.Int, nil
	case value.KindUint:
		return v.Uint, nil
	case value.KindFloat:
		return v.Float, nil
	case value.KindString:
		return v.Str, nil
	case value.KindBytes:
		return v.Bytes, nil
	case value.KindList:
		out := make([]interface{}, len(v.List))
		for i, e := range v.List {
			gv, err := valueToGo(e)
			if err != nil {
				return nil, err
			}
			out[i] = gv
		}
		return out, nil
	case value.KindMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, e := range v.Map {
			gv, err := valueToGo(e)
			if err != nil {
				return nil, err
			}
			out[k] = gv
		}
		return out, nil
	case value.KindArray:
		return nil, fmt.Errorf("wire: array-kind value %q cannot be encoded inline", v.Array.DType)
	default:
		return nil, fmt.Errorf("wire: unknown value kind %v", v.Kind)
	}
}

// goToValue converts the interface{} produced by msgpack decoding back into
// a Value. msgpack decodes signed wire ints as int64, unsigned as uint64,
// all floats as float64, raw/bin as []byte, arrays as []interface{} and
// maps as map[string]interface{}.
func goToValue(g interface{}) (value.Value, error) {
	switch t := g.(type) {
	case nil:
		return value.Value{Kind: value.KindNil}, nil
	case bool:
		return value.Bool(t), nil
	case int64:
		return value.Int(t), nil
	case int:
		return value.Int(int64(t)), nil
	case int8:
		return value.Int(int64(t)), nil
	case int16:
		return value.Int(int64(t)), nil
	case int32:
		return value.Int(int64(t)), nil
	case uint64:
		return value.Uint(t), nil
	case uint:
		return value.Uint(uint64(t)), nil
	case uint8:
		return value.Uint(uint64(t)), nil
	case uint16:
		return value.Uint(uint64(t)), nil
	case uint32:
		return value.Uint(uint64(t)), nil
	case float32:
		return value.Float(float64(t)), nil
	case float64:
		return value.Float(t), nil
	case string:
		return value.String(t), nil
	case []byte:
		return value.Bytes(t), nil
	case []interface{}:
		out := make([]value.Value, len(t))
		for i, e := range t {
			ev, err := goToValue(e)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = ev
		}
		return value.List(out...), nil
	case map[string]interface{}:
		out := make(map[string]value.Value, len(t))
		for k, e := range t {
			ev, err := goToValue(e)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = ev
		}
		return value.Map(out), nil
	default:
		return value.Value{}, fmt.Errorf("wire: cannot decode msgpack type %T into a Value", g)
	}
}

func shapeToGo(shape []int) []interface{} {
	out := make([]interface{}, len(shape))
	for i, d := range shape {
		out[i] = int64(d)
	}
	return out
}

func shapeFromGo(g interface{}) ([]int, error) {
	raw, ok := g.([]interface{})
	if !ok {
		return nil, fmt.Errorf("wire: shape field is not an array (got %T)", g)
	}
	shape := make([]int, len(raw))
	for i, e := range raw {
		n, err := asInt(e)
		if err != nil {
			return nil, fmt.Errorf("wire: shape[%d]: %w", i, err)
		}
		shape[i] = n
	}
	return shape, nil
}

func asInt(g interface{}) (int, error) {
	switch t := g.(type) {
	case int64:
		return int(t), nil
	case uint64:
		return int(t), nil
	case int:
		return t, nil
	default:
		return 0, fmt.Errorf("not an integer: %T", g)
	}
}

func asString(g interface{}) (string, error) {
	s, ok := g.(string)
	if !ok {
		return "", fmt.Errorf("not a string: %T", g)
	}
	return s, nil
}
