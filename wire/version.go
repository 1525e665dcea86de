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
)

// Version identifies a wire framing revision.
type Version string

// Supported protocol versions.
const (
	V1_0 Version = "1.0" // single frame, metadata nested under "metadata"
	V2_1 Version = "2.1" // header/payload framing, metadata flattened as "metadata.<key>"
	V2_2 Version = "2.2" // header/payload framing, metadata carried on the header (current default)
)

// Default is the protocol version used when none is configured.
const Default = V2_2

// Valid reports whether v is one of the supported protocol versions.
func (v Version) Valid() bool {
	switch v {
	case V1_0, V2_1, V2_2:
		return true
	default:
		return false
	}
}

func (v Version) String() string { return string(v) }

// content tags carried on v2.x header frames.
const (
	contentMsgpack   = "msgpack"
	contentArray     = "array"
	contentImageData = "ImageData"
)

func unsupportedVersion(v Version) error {
	return fmt.Errorf("%w: unsupported protocol version %q", errs.ErrConfiguration, v)
}
