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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualScalars(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal ints", Int(5), Int(5), true},
		{"different ints", Int(5), Int(6), false},
		{"different kinds", Int(5), Float(5), false},
		{"equal strings", String("a.b"), String("a.b"), true},
		{"equal bytes", Bytes([]byte{1, 2}), Bytes([]byte{1, 2}), true},
		{"different bytes length", Bytes([]byte{1, 2}), Bytes([]byte{1}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestEqualNested(t *testing.T) {
	a := Map(map[string]Value{
		"image.cellId": List(Int(1), Int(2), Int(3)),
		"nested":       Map(map[string]Value{"x": Bool(true)}),
	})
	b := Map(map[string]Value{
		"image.cellId": List(Int(1), Int(2), Int(3)),
		"nested":       Map(map[string]Value{"x": Bool(true)}),
	})
	require.True(t, Equal(a, b))

	c := Map(map[string]Value{
		"image.cellId": List(Int(1), Int(2), Int(4)),
		"nested":       Map(map[string]Value{"x": Bool(true)}),
	})
	require.False(t, Equal(a, c))
}

func TestArrayRoundTripEquality(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}
	arr, err := NewArray(Uint8, []int{2, 3, 4}, data)
	require.NoError(t, err)
	require.Equal(t, 24, arr.Len())

	other, err := NewArray(Uint8, []int{2, 3, 4}, append([]byte(nil), data...))
	require.NoError(t, err)
	require.True(t, arr.Equal(other))

	other.Data[0] = 0xff
	require.False(t, arr.Equal(other))
}

func TestNewArrayRejectsBadSize(t *testing.T) {
	_, err := NewArray(Uint16, []int{2, 2}, []byte{0, 0, 0})
	require.Error(t, err)
}

func TestNewArrayRejectsUnknownDtype(t *testing.T) {
	_, err := NewArray(DType("uint24"), []int{1}, []byte{0, 0, 0})
	require.Error(t, err)
}

func TestArrayAliasesBackingStorage(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	arr, err := NewArray(Uint8, []int{4}, data)
	require.NoError(t, err)

	data[0] = 42
	require.Equal(t, byte(42), arr.Data[0], "array view must alias the original buffer, not copy it")
}
