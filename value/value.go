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

// Package value implements the dynamic property-bag value model carried by
// the Karabo Bridge wire protocol: a closed tagged union of scalars, lists,
// nested maps and n-dimensional numeric arrays.
package value

import "fmt"

// Kind tags the dynamic type carried by a Value.
type Kind uint8

// Recognized Value kinds.
const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is one entry of a property bag. Exactly one of the typed fields is
// meaningful, selected by Kind. Property paths that hold a Value are opaque
// dotted strings; Value itself never splits or interprets them.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Bytes []byte
	List  []Value
	Map   map[string]Value
	Array *Array
}

// Bool returns a bool-kinded Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns an int-kinded Value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Uint returns a uint-kinded Value.
func Uint(u uint64) Value { return Value{Kind: KindUint, Uint: u} }

// Float returns a float-kinded Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String returns a string-kinded Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Bytes returns a bytes-kinded Value. b is not copied.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// List returns a list-kinded Value.
func List(v ...Value) Value { return Value{Kind: KindList, List: v} }

// Map returns a map-kinded Value. m is not copied.
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// NDArray returns an array-kinded Value wrapping a.
func NDArray(a *Array) Value { return Value{Kind: KindArray, Array: a} }

// IsArray reports whether v holds an n-dimensional array.
func (v Value) IsArray() bool { return v.Kind == KindArray }

// Equal reports deep equality, comparing array payloads byte-for-byte.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindUint:
		return a.Uint == b.Uint
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		return bytesEqual(a.Bytes, b.Bytes)
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindArray:
		return a.Array.Equal(b.Array)
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
