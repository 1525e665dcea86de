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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/vmihailenco/msgpack/v5"
)

// legacyArrayDtypeKey, legacyArrayShapeKey and legacyArrayDataKey mark an
// array value embedded inline in the v1.0 single-frame representation,
// which has no separate array payload frame to carry dtype/shape/bytes.
const (
	legacyArrayDtypeKey = "__kb_dtype"
	legacyArrayShapeKey = "__kb_shape"
	legacyArrayDataKey  = "__kb_data"
)

// Serializer encodes trains into framed multipart messages of a single
// configured protocol version.
type Serializer struct {
	Version         Version
	DummyTimestamps bool

	// Now supplies the wall-clock time used for dummy timestamps. Tests
	// override it; production code leaves it nil and gets time.Now.
	Now func() time.Time
}

// NewSerializer validates version and returns a ready Serializer.
func NewSerializer(version Version, dummyTimestamps bool) (*Serializer, error) {
	if !version.Valid() {
		return nil, unsupportedVersion(version)
	}
	return &Serializer{Version: version, DummyTimestamps: dummyTimestamps}, nil
}

func (s *Serializer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// applyDummyTimestamps fills timestamp/timestamp.sec/timestamp.frac from
// the wall clock when configured and no timestamp was already supplied. It
// never overwrites an existing timestamp.
func (s *Serializer) applyDummyTimestamps(m Metadata) Metadata {
	if !s.DummyTimestamps || m.HasTimestamp {
		return m
	}
	now := s.now()
	nanos := now.Nanosecond()
	m.HasTimestamp = true
	m.Timestamp = float64(now.Unix()) + float64(nanos)/1e9
	m.HasTimestampSec = true
	m.TimestampSec = strconv.FormatInt(now.Unix(), 10)
	m.HasTimestampFrac = true
	m.TimestampFrac = fmt.Sprintf("%09d", nanos) + strings.Repeat("0", 9)
	return m
}

// Serialize encodes data/meta into the sequence of frames for s.Version.
// Sources are emitted in sorted order for a deterministic wire byte stream.
func (s *Serializer) Serialize(data map[string]PropertyBag, meta map[string]Metadata) ([][]byte, error) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	switch s.Version {
	case V1_0:
		return s.serializeV1(names, data, meta)
	case V2_1, V2_2:
		return s.serializeV2(names, data, meta)
	default:
		return nil, unsupportedVersion(s.Version)
	}
}

func (s *Serializer) serializeV1(names []string, data map[string]PropertyBag, meta map[string]Metadata) ([][]byte, error) {
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		bag, err := bagToGoLegacy(data[name])
		if err != nil {
			return nil, fmt.Errorf("wire: source %q: %w", name, err)
		}
		m := s.applyDummyTimestamps(meta[name])
		m.Source = name
		bag["metadata"] = metadataToMap(m)
		out[name] = bag
	}
	frame, err := msgpack.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	return [][]byte{frame}, nil
}

// bagToGoLegacy converts a property bag for v1.0, embedding arrays inline
// as marker maps instead of stripping them to separate frames.
func bagToGoLegacy(bag PropertyBag) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(bag))
	for path, v := range bag {
		if v.IsArray() {
			out[path] = map[string]interface{}{
				legacyArrayDtypeKey: string(v.Array.DType),
				legacyArrayShapeKey: shapeToGo(v.Array.Shape),
				legacyArrayDataKey:  v.Array.Data,
			}
			continue
		}
		gv, err := valueToGo(v)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		out[path] = gv
	}
	return out, nil
}

func (s *Serializer) serializeV2(names []string, data map[string]PropertyBag, meta map[string]Metadata) ([][]byte, error) {
	var frames [][]byte
	for _, name := range names {
		bag := data[name]
		scalars := make(map[string]interface{}, len(bag))
		var arrays []arrayProp
		for path, v := range bag {
			if v.IsArray() {
				arrays = append(arrays, arrayProp{path: path, arr: v.Array})
				continue
			}
			gv, err := valueToGo(v)
			if err != nil {
				return nil, fmt.Errorf("wire: source %q path %q: %w", name, path, err)
			}
			scalars[path] = gv
		}

		m := s.applyDummyTimestamps(meta[name])
		m.Source = name

		header := map[string]interface{}{
			"source":  name,
			"content": contentMsgpack,
		}
		if s.Version == V2_2 {
			header["metadata"] = metadataToMap(m)
		} else {
			flattenMetadata(scalars, m)
		}

		headerFrame, err := msgpack.Marshal(header)
		if err != nil {
			return nil, fmt.Errorf("wire: source %q header: %w", name, err)
		}
		payloadFrame, err := msgpack.Marshal(scalars)
		if err != nil {
			return nil, fmt.Errorf("wire: source %q payload: %w", name, err)
		}
		frames = append(frames, headerFrame, payloadFrame)

		sort.Slice(arrays, func(i, j int) bool { return arrays[i].path < arrays[j].path })
		for _, a := range arrays {
			arrHeader := map[string]interface{}{
				"source":  name,
				"content": contentArray,
				"path":    a.path,
				"dtype":   string(a.arr.DType),
				"shape":   shapeToGo(a.arr.Shape),
			}
			arrHeaderFrame, err := msgpack.Marshal(arrHeader)
			if err != nil {
				return nil, fmt.Errorf("wire: source %q array %q header: %w", name, a.path, err)
			}
			frames = append(frames, arrHeaderFrame, a.arr.Data)
		}
	}
	return frames, nil
}

type arrayProp struct {
	path string
	arr  *value.Array
}
