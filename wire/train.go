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

// Package wire implements the Karabo Bridge framed multipart wire protocol:
// encoding and decoding of trains into versioned sequences of frames.
package wire

import "github.com/european-xfel/karabo-bridge-go/value"

// PropertyBag maps a dotted property path to its value. Paths are opaque:
// the codec never splits "a.b" into a nested map.
type PropertyBag map[string]value.Value

// Metadata is the flat per-source metadata bag. All fields are optional;
// the Has* flags record whether the corresponding key was present on the
// wire (or supplied by the caller) rather than synthesized.
type Metadata struct {
	Source string

	HasTimestamp bool
	Timestamp    float64 // Unix epoch seconds, sub-second precision

	HasTimestampSec bool
	TimestampSec    string // decimal integer seconds

	HasTimestampFrac bool
	TimestampFrac    string // fractional seconds, right-padded to 18 digits

	HasTrainID bool
	TrainID    uint64
}

// Equal reports whether m and o carry the same fields. Source is compared
// only when both supply it, since the decoder always echoes it back.
func (m Metadata) Equal(o Metadata) bool {
	if m.Source != "" && o.Source != "" && m.Source != o.Source {
		return false
	}
	if m.HasTimestamp != o.HasTimestamp || (m.HasTimestamp && m.Timestamp != o.Timestamp) {
		return false
	}
	if m.HasTimestampSec != o.HasTimestampSec || (m.HasTimestampSec && m.TimestampSec != o.TimestampSec) {
		return false
	}
	if m.HasTimestampFrac != o.HasTimestampFrac || (m.HasTimestampFrac && m.TimestampFrac != o.TimestampFrac) {
		return false
	}
	if m.HasTrainID != o.HasTrainID || (m.HasTrainID && m.TrainID != o.TrainID) {
		return false
	}
	return true
}

// IsEmpty reports whether no metadata field was ever set.
func (m Metadata) IsEmpty() bool {
	return m.Source == "" && !m.HasTimestamp && !m.HasTimestampSec && !m.HasTimestampFrac && !m.HasTrainID
}

// Train is the unit of transfer: a source-indexed property bag plus
// parallel per-source metadata. After Deserialize, Data and Meta always carry
// identical key sets (invariant 1 of the wire protocol).
type Train struct {
	Data map[string]PropertyBag
	Meta map[string]Metadata
}

// Sources returns the train's source names.
func (t Train) Sources() []string {
	names := make([]string, 0, len(t.Data))
	for s := range t.Data {
		names = append(names, s)
	}
	return names
}
