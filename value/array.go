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

package value

import "fmt"

// DType names an accepted n-dimensional array element type. The wire value
// is the canonical lower-case string, native-endian, matching the set
// mandated by the protocol.
type DType string

// Accepted dtypes. Any other string is a protocol error at decode time.
const (
	Bool       DType = "bool"
	Int8       DType = "int8"
	Int16      DType = "int16"
	Int32      DType = "int32"
	Int64      DType = "int64"
	Uint8      DType = "uint8"
	Uint16     DType = "uint16"
	Uint32     DType = "uint32"
	Uint64     DType = "uint64"
	Float16    DType = "float16"
	Float32    DType = "float32"
	Float64    DType = "float64"
	Complex64  DType = "complex64"
	Complex128 DType = "complex128"
)

// ItemSize returns the size in bytes of a single element of d, or 0 if d is
// not a recognized dtype.
func (d DType) ItemSize() int {
	switch d {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		return 0
	}
}

// Valid reports whether d is one of the canonical accepted dtypes.
func (d DType) Valid() bool { return d.ItemSize() != 0 }

// Array is a contiguous, row-major, native-endian n-dimensional numeric
// array as carried by an array payload frame. Data is never copied by the
// decoder: it aliases a region of the frame buffer it was decoded from, so
// its lifetime is bound to whatever owns that buffer (see wire.Deserialize).
type Array struct {
	DType DType
	Shape []int
	Data  []byte
}

// NewArray validates that data's length matches shape and dtype before
// returning an Array wrapping it without copying.
func NewArray(dtype DType, shape []int, data []byte) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("value: unsupported dtype %q", dtype)
	}
	want := dtype.ItemSize()
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("value: negative array dimension %d", d)
		}
		want *= d
	}
	if want != len(data) {
		return nil, fmt.Errorf("value: array of shape %v dtype %s needs %d bytes, got %d", shape, dtype, want, len(data))
	}
	return &Array{DType: dtype, Shape: append([]int(nil), shape...), Data: data}, nil
}

// Len returns the total element count implied by Shape.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Equal compares dtype, shape and byte content; it does not require the two
// arrays to alias the same backing storage.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.DType != b.DType || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return bytesEqual(a.Data, b.Data)
}
