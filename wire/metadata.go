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

import "fmt"

// metadataToMap builds the nested metadata map carried on a v2.2 header or
// embedded under v1.0's "metadata" property key. Only fields the caller set
// are included, matching "all optional on the wire".
func metadataToMap(m Metadata) map[string]interface{} {
	out := map[string]interface{}{}
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.HasTimestamp {
		out["timestamp"] = m.Timestamp
	}
	if m.HasTimestampSec {
		out["timestamp.sec"] = m.TimestampSec
	}
	if m.HasTimestampFrac {
		out["timestamp.frac"] = m.TimestampFrac
	}
	if m.HasTrainID {
		out["timestamp.tid"] = m.TrainID
	}
	return out
}

// metadataFromMap is the inverse of metadataToMap.
func metadataFromMap(raw map[string]interface{}) (Metadata, error) {
	var m Metadata
	if v, ok := raw["source"]; ok {
		s, err := asString(v)
		if err != nil {
			return m, err
		}
		m.Source = s
	}
	if v, ok := raw["timestamp"]; ok {
		f, err := asFloat(v)
		if err != nil {
			return m, err
		}
		m.HasTimestamp, m.Timestamp = true, f
	}
	if v, ok := raw["timestamp.sec"]; ok {
		s, err := asString(v)
		if err != nil {
			return m, err
		}
		m.HasTimestampSec, m.TimestampSec = true, s
	}
	if v, ok := raw["timestamp.frac"]; ok {
		s, err := asString(v)
		if err != nil {
			return m, err
		}
		m.HasTimestampFrac, m.TimestampFrac = true, s
	}
	if v, ok := raw["timestamp.tid"]; ok {
		n, err := asUint(v)
		if err != nil {
			return m, err
		}
		m.HasTrainID, m.TrainID = true, n
	}
	return m, nil
}

// flattenMetadata writes m's fields into bag as "metadata.<key>" entries,
// the v2.1 representation.
func flattenMetadata(bag map[string]interface{}, m Metadata) {
	for k, v := range metadataToMap(m) {
		bag["metadata."+k] = v
	}
}

// unflattenMetadata extracts "metadata.<key>" entries from bag, removing
// them, and returns the reconstructed Metadata. Used for v2.1 decoding.
func unflattenMetadata(bag map[string]interface{}) (Metadata, error) {
	nested := map[string]interface{}{}
	for k, v := range bag {
		if rest, ok := cutPrefix(k, "metadata."); ok {
			nested[rest] = v
			delete(bag, k)
		}
	}
	return metadataFromMap(nested)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

func asFloat(g interface{}) (float64, error) {
	switch t := g.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	default:
		return 0, errNotNumeric(g)
	}
}

func asUint(g interface{}) (uint64, error) {
	switch t := g.(type) {
	case uint64:
		return t, nil
	case int64:
		return uint64(t), nil
	default:
		return 0, errNotNumeric(g)
	}
}

func errNotNumeric(g interface{}) error {
	return fmt.Errorf("not numeric: %T", g)
}
