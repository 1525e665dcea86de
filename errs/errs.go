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

// Package errs defines the Karabo Bridge core's error taxonomy. All of the
// core's packages wrap one of these sentinels with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is regardless of which
// component raised them.
package errs

import "errors"

var (
	// ErrConfiguration marks an unsupported pattern, protocol version or
	// serializer, or a missing endpoint. Always raised synchronously at
	// construction time. A malformed endpoint is not classified here: the
	// transport reports it as a failed dial or listen (ErrTransportClosed).
	ErrConfiguration = errors.New("karabo bridge: configuration error")

	// ErrProtocol marks a malformed wire message: unknown content tag,
	// undecodable header, odd v2.x frame count, or an unrecognized dtype.
	// Fatal for the affected train only; the stream itself stays usable.
	ErrProtocol = errors.New("karabo bridge: protocol error")

	// ErrTimeout marks an elapsed receive deadline. The client preserves
	// its pending-request state across this error so a retry does not
	// re-issue a request.
	ErrTimeout = errors.New("karabo bridge: timeout")

	// ErrQueueFull marks a non-blocking Feed against a saturated queue.
	ErrQueueFull = errors.New("karabo bridge: queue full")

	// ErrTransportClosed marks use of a socket or context that has
	// already been torn down, or an unreachable peer.
	ErrTransportClosed = errors.New("karabo bridge: transport closed")
)
