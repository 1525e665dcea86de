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

package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/european-xfel/karabo-bridge-go/errs"
)

// Request is a parsed REP handshake request. The wire format recognizes
// exactly two shapes: "next" and "next <divisor> <remainder>".
type Request struct {
	Raw         string
	Partitioned bool
	Divisor     int
	Remainder   int
}

// Matches reports whether trainID satisfies the request's partitioning
// predicate. An unpartitioned request matches every train.
func (r Request) Matches(trainID uint64) bool {
	if !r.Partitioned {
		return true
	}
	return trainID%uint64(r.Divisor) == uint64(r.Remainder)
}

// parseRequest recognizes "next" and "next <divisor> <remainder>". Anything
// else is a bad request: the caller is expected to reply with an error
// frame and keep the socket ready for the next cycle.
func parseRequest(raw string) (Request, error) {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 1:
		if fields[0] == "next" {
			return Request{Raw: raw}, nil
		}
	case 3:
		if fields[0] == "next" {
			divisor, err1 := strconv.Atoi(fields[1])
			remainder, err2 := strconv.Atoi(fields[2])
			if err1 == nil && err2 == nil && divisor > 0 && remainder >= 0 && remainder < divisor {
				return Request{Raw: raw, Partitioned: true, Divisor: divisor, Remainder: remainder}, nil
			}
		}
	}
	return Request{}, fmt.Errorf("%w: bad request %q", errs.ErrProtocol, raw)
}
