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

// Package transport implements the Karabo Bridge's framed-socket layer: a
// thin, pattern-aware wrapper over ZeroMQ sockets (via go-zeromq/zmq4) that
// exposes exactly the patterns the wire protocol needs and nothing more.
package transport

import (
	"context"
	"fmt"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/go-zeromq/zmq4"
)

// Pattern names one of the socket patterns the bridge uses. Names match the
// ZeroMQ socket types they map onto.
type Pattern string

// Client-side and server-side patterns.
const (
	REQ    Pattern = "REQ"
	REP    Pattern = "REP"
	PUB    Pattern = "PUB"
	SUB    Pattern = "SUB"
	PUSH   Pattern = "PUSH"
	PULL   Pattern = "PULL"
	DEALER Pattern = "DEALER"
	PAIR   Pattern = "PAIR"
)

// RequiresRequest reports whether a client using p must send a request
// before each receive (REQ and DEALER patterns).
func (p Pattern) RequiresRequest() bool {
	return p == REQ || p == DEALER
}

// newZMQSocket constructs the zmq4.Socket backing a given pattern. Server
// and client roles pick different constructors for the same wire pattern
// name where ZeroMQ distinguishes them (e.g. REQ vs REP).
func newZMQSocket(ctx context.Context, p Pattern, opts ...zmq4.Option) (zmq4.Socket, error) {
	switch p {
	case REQ:
		return zmq4.NewReq(ctx, opts...), nil
	case REP:
		return zmq4.NewRep(ctx, opts...), nil
	case PUB:
		return zmq4.NewPub(ctx, opts...), nil
	case SUB:
		return zmq4.NewSub(ctx, opts...), nil
	case PUSH:
		return zmq4.NewPush(ctx, opts...), nil
	case PULL:
		return zmq4.NewPull(ctx, opts...), nil
	case DEALER:
		return zmq4.NewDealer(ctx, opts...), nil
	case PAIR:
		return zmq4.NewPair(ctx, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported pattern %q", errs.ErrConfiguration, p)
	}
}
