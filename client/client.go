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

// Package client implements the Karabo Bridge client: it drives the
// transport layer, issues requests when the configured pattern demands
// them, and decodes replies into trains.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/wire"
)

// socket is the subset of transport.Socket the client needs. Accepting
// this narrow interface (rather than *transport.Socket) keeps the
// pending-request state machine unit-testable without a real ZeroMQ
// socket; see client_test.go and the generated mock in client/clientmock.
type socket interface {
	Send(frames ...[]byte) error
	Recv() ([][]byte, error)
	Close() error
}

// Config configures a Client. Only REQ, SUB, PULL and DEALER are valid
// client-side patterns.
type Config struct {
	Pattern         transport.Pattern
	ProtocolVersion wire.Version
	Timeout         time.Duration // zero means block indefinitely
}

func (c Config) validate() error {
	switch c.Pattern {
	case transport.REQ, transport.SUB, transport.PULL, transport.DEALER:
	default:
		return fmt.Errorf("%w: client pattern must be one of REQ, SUB, PULL, DEALER, got %q", errs.ErrConfiguration, c.Pattern)
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = wire.Default
	}
	if !c.ProtocolVersion.Valid() {
		return fmt.Errorf("%w: unsupported protocol_version %q", errs.ErrConfiguration, c.ProtocolVersion)
	}
	return nil
}

// Client is a Karabo Bridge client. It is not safe for concurrent calls to
// Next/NextWithPartitioning on the same instance.
type Client struct {
	cfg    Config
	socks  []socket // one entry for REQ/SUB/PULL, one per endpoint for DEALER
	closed bool

	// requestOutstanding tracks whether a request has been sent that has
	// not yet been satisfied by a reply. A timeout leaves it set so the
	// next call retries the receive instead of re-issuing the request.
	requestOutstanding bool
}

// dialer abstracts transport.Dial so tests can substitute fakes.
var dialer = func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error) {
	return transport.Dial(ctx, pattern, cfg, endpoint)
}

// Dial connects a new Client to one or more endpoints. For all patterns
// except DEALER exactly one endpoint is expected; DEALER fans out to all
// of them.
func Dial(ctx context.Context, cfg Config, endpoints ...string) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: at least one endpoint is required", errs.ErrConfiguration)
	}
	if cfg.Pattern != transport.DEALER && len(endpoints) != 1 {
		return nil, fmt.Errorf("%w: pattern %q accepts exactly one endpoint", errs.ErrConfiguration, cfg.Pattern)
	}

	tcfg := transport.Config{RecvTimeout: cfg.Timeout}
	var socks []socket
	for _, ep := range endpoints {
		s, err := dialer(ctx, cfg.Pattern, tcfg, ep)
		if err != nil {
			for _, opened := range socks {
				opened.Close()
			}
			return nil, err
		}
		socks = append(socks, s)
	}
	return &Client{cfg: cfg, socks: socks}, nil
}

// Next blocks for the next train.
func (c *Client) Next(ctx context.Context) (wire.Train, error) {
	return c.next(ctx, "next")
}

// NextWithPartitioning requests that the server only emit a train when
// train_id mod divisor == remainder, letting several cooperating clients
// shard a stream between them. Only meaningful with REQ/DEALER patterns.
func (c *Client) NextWithPartitioning(ctx context.Context, divisor, remainder int) (wire.Train, error) {
	return c.next(ctx, fmt.Sprintf("next %d %d", divisor, remainder))
}

func (c *Client) next(ctx context.Context, request string) (wire.Train, error) {
	if c.closed {
		return wire.Train{}, fmt.Errorf("%w: client is closed", errs.ErrTransportClosed)
	}

	if c.cfg.Pattern.RequiresRequest() && !c.requestOutstanding {
		for _, s := range c.socks {
			var err error
			if c.cfg.Pattern == transport.DEALER {
				// DEALER has no implicit envelope like REQ does; the
				// empty delimiter frame must be added by hand to match
				// what a REP peer expects.
				err = s.Send([]byte{}, []byte(request))
			} else {
				err = s.Send([]byte(request))
			}
			if err != nil {
				return wire.Train{}, err
			}
		}
		c.requestOutstanding = true
	}

	if len(c.socks) == 1 && c.cfg.Pattern != transport.DEALER {
		frames, err := c.socks[0].Recv()
		if err != nil {
			return wire.Train{}, err
		}
		c.requestOutstanding = false
		return wire.Deserialize(frames)
	}

	return c.recvDealer(ctx)
}

// recvDealer receives one reply per endpoint, strips the leading empty
// delimiter frame each DEALER socket must prepend ahead of its request (and
// which the remote REP echoes back), and merges the decoded per-source
// maps. There is no ordering guarantee across endpoints, and uniqueness of
// source names across endpoints is the caller's responsibility.
func (c *Client) recvDealer(_ context.Context) (wire.Train, error) {
	merged := wire.Train{Data: map[string]wire.PropertyBag{}, Meta: map[string]wire.Metadata{}}
	for _, s := range c.socks {
		frames, err := s.Recv()
		if err != nil {
			return wire.Train{}, err
		}
		if len(frames) > 0 && len(frames[0]) == 0 {
			frames = frames[1:]
		}
		t, err := wire.Deserialize(frames)
		if err != nil {
			return wire.Train{}, err
		}
		for src, bag := range t.Data {
			merged.Data[src] = bag
		}
		for src, m := range t.Meta {
			merged.Meta[src] = m
		}
	}
	c.requestOutstanding = false
	return merged, nil
}

// Close releases the client's sockets. Any in-flight Recv is aborted.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var firstErr error
	for _, s := range c.socks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Iterate returns a function suitable for range-over-func style loops,
// yielding trains indefinitely by delegating to Next. Iteration stops, and
// the yielded error is non-nil, the moment Next fails.
func (c *Client) Iterate(ctx context.Context, yield func(wire.Train, error) bool) {
	for {
		t, err := c.Next(ctx)
		if !yield(t, err) {
			return
		}
		if err != nil {
			return
		}
	}
}
