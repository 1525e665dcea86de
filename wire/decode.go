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

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/vmihailenco/msgpack/v5"
)

// Deserialize decodes a received multipart message into a Train. The
// protocol version is detected by frame count alone, per the wire
// protocol: fewer than two frames is v1.0, otherwise frames are consumed
// in (header, payload) pairs.
//
// Array payload frames (Data[source][path].Array.Data) alias the byte
// slices in frames directly; callers must keep frames alive for as long as
// they hold on to any decoded array.
func Deserialize(frames [][]byte) (Train, error) {
	if len(frames) < 2 {
		return decodeV1(frames)
	}
	if len(frames)%2 != 0 {
		return Train{}, fmt.Errorf("%w: truncated multipart, got %d frames", errs.ErrProtocol, len(frames))
	}
	return decodeV2(frames)
}

func decodeV1(frames [][]byte) (Train, error) {
	t := Train{Data: map[string]PropertyBag{}, Meta: map[string]Metadata{}}
	if len(frames) == 0 {
		return t, nil
	}
	var raw map[string]interface{}
	if err := msgpack.Unmarshal(frames[0], &raw); err != nil {
		return Train{}, fmt.Errorf("%w: v1.0 frame is not a map: %v", errs.ErrProtocol, err)
	}
	for source, sv := range raw {
		bagRaw, ok := sv.(map[string]interface{})
		if !ok {
			return Train{}, fmt.Errorf("%w: v1.0 source %q is not a map", errs.ErrProtocol, source)
		}
		var meta Metadata
		if mv, ok := bagRaw["metadata"]; ok {
			nested, ok := mv.(map[string]interface{})
			if !ok {
				return Train{}, fmt.Errorf("%w: v1.0 source %q metadata is not a map", errs.ErrProtocol, source)
			}
			m, err := metadataFromMap(nested)
			if err != nil {
				return Train{}, fmt.Errorf("%w: v1.0 source %q metadata: %v", errs.ErrProtocol, source, err)
			}
			meta = m
			delete(bagRaw, "metadata")
		}
		if meta.Source == "" {
			meta.Source = source
		}
		bag, err := bagFromGoLegacy(bagRaw)
		if err != nil {
			return Train{}, fmt.Errorf("%w: v1.0 source %q: %v", errs.ErrProtocol, source, err)
		}
		t.Data[source] = bag
		t.Meta[source] = meta
	}
	return t, nil
}

func bagFromGoLegacy(raw map[string]interface{}) (PropertyBag, error) {
	bag := make(PropertyBag, len(raw))
	for path, gv := range raw {
		if m, ok := gv.(map[string]interface{}); ok {
			if dv, ok := m[legacyArrayDtypeKey]; ok {
				arr, err := arrayFromLegacyMarker(dv, m)
				if err != nil {
					return nil, fmt.Errorf("path %q: %w", path, err)
				}
				bag[path] = value.NDArray(arr)
				continue
			}
		}
		v, err := goToValue(gv)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		bag[path] = v
	}
	return bag, nil
}

func arrayFromLegacyMarker(dtypeRaw interface{}, m map[string]interface{}) (*value.Array, error) {
	dtype, err := asString(dtypeRaw)
	if err != nil {
		return nil, err
	}
	shape, err := shapeFromGo(m[legacyArrayShapeKey])
	if err != nil {
		return nil, err
	}
	data, ok := m[legacyArrayDataKey].([]byte)
	if !ok {
		return nil, fmt.Errorf("array data is not bytes (got %T)", m[legacyArrayDataKey])
	}
	return value.NewArray(value.DType(dtype), shape, data)
}

func decodeV2(frames [][]byte) (Train, error) {
	t := Train{Data: map[string]PropertyBag{}, Meta: map[string]Metadata{}}
	currentSource := ""

	for i := 0; i < len(frames); i += 2 {
		header, payload := frames[i], frames[i+1]

		var h map[string]interface{}
		if err := msgpack.Unmarshal(header, &h); err != nil {
			return Train{}, fmt.Errorf("%w: header frame %d is not a map: %v", errs.ErrProtocol, i, err)
		}
		source, ok := h["source"].(string)
		if !ok || source == "" {
			return Train{}, fmt.Errorf("%w: header frame %d missing source", errs.ErrProtocol, i)
		}
		content, ok := h["content"].(string)
		if !ok || content == "" {
			return Train{}, fmt.Errorf("%w: header frame %d missing content", errs.ErrProtocol, i)
		}

		switch content {
		case contentMsgpack:
			currentSource = source
			var bagRaw map[string]interface{}
			if err := msgpack.Unmarshal(payload, &bagRaw); err != nil {
				return Train{}, fmt.Errorf("%w: source %q payload is not a map: %v", errs.ErrProtocol, source, err)
			}

			var meta Metadata
			if mv, ok := h["metadata"]; ok {
				nested, ok := mv.(map[string]interface{})
				if !ok {
					return Train{}, fmt.Errorf("%w: source %q header metadata is not a map", errs.ErrProtocol, source)
				}
				m, err := metadataFromMap(nested)
				if err != nil {
					return Train{}, fmt.Errorf("%w: source %q metadata: %v", errs.ErrProtocol, source, err)
				}
				meta = m
			} else {
				m, err := unflattenMetadata(bagRaw)
				if err != nil {
					return Train{}, fmt.Errorf("%w: source %q flattened metadata: %v", errs.ErrProtocol, source, err)
				}
				meta = m
			}
			if meta.Source == "" {
				meta.Source = source
			}

			bag := make(PropertyBag, len(bagRaw))
			for path, gv := range bagRaw {
				v, err := goToValue(gv)
				if err != nil {
					return Train{}, fmt.Errorf("%w: source %q path %q: %v", errs.ErrProtocol, source, path, err)
				}
				bag[path] = v
			}
			t.Data[source] = bag
			t.Meta[source] = meta

		case contentArray, contentImageData:
			if currentSource == "" || source != currentSource {
				return Train{}, fmt.Errorf("%w: array frame for %q arrived before its msgpack header", errs.ErrProtocol, source)
			}
			path, ok := h["path"].(string)
			if !ok {
				return Train{}, fmt.Errorf("%w: array header for %q missing path", errs.ErrProtocol, source)
			}
			dtype, err := asString(h["dtype"])
			if err != nil {
				return Train{}, fmt.Errorf("%w: array header for %q path %q: %v", errs.ErrProtocol, source, path, err)
			}
			shape, err := shapeFromGo(h["shape"])
			if err != nil {
				return Train{}, fmt.Errorf("%w: array header for %q path %q: %v", errs.ErrProtocol, source, path, err)
			}
			arr, err := value.NewArray(value.DType(dtype), shape, payload)
			if err != nil {
				return Train{}, fmt.Errorf("%w: %v", errs.ErrProtocol, err)
			}
			if t.Data[currentSource] == nil {
				t.Data[currentSource] = PropertyBag{}
			}
			t.Data[currentSource][path] = value.NDArray(arr)

		default:
			return Train{}, fmt.Errorf("%w: unknown content tag %q", errs.ErrProtocol, content)
		}
	}

	for source := range t.Data {
		if _, ok := t.Meta[source]; !ok {
			t.Meta[source] = Metadata{Source: source}
		}
	}
	return t, nil
}
