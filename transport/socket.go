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

package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/go-zeromq/zmq4"
)

// DefaultHWM is the default send/receive queue bound applied to PUB and SUB
// sockets: slow consumers must not accumulate giant trains, so freshness is
// favored over completeness on the broadcast path.
const DefaultHWM = 1

// LegacyEndpointPattern is the v1.0 client's TCP endpoint validation regex.
// Dial and Listen do not pre-validate endpoints: a malformed endpoint is
// reported as a failed dial or listen, wrapped in errs.ErrTransportClosed,
// not as errs.ErrConfiguration.
var LegacyEndpointPattern = regexp.MustCompile(`^tcp://.*:\d{1,5}$`)

// Config holds the options recognized when opening a Socket.
type Config struct {
	// HWM bounds the PUB/SUB queue depth. Zero means DefaultHWM.
	HWM int
	// RecvTimeout, if non-zero, bounds how long Recv blocks before
	// returning errs.ErrTimeout.
	RecvTimeout time.Duration
}

// Socket is a pattern-aware multipart message endpoint.
type Socket struct {
	pattern Pattern
	cfg     Config
	zsock   zmq4.Socket
	bound   string
}

// Listen opens a server-role socket of the given pattern bound to endpoint.
func Listen(ctx context.Context, pattern Pattern, endpoint string, cfg Config) (*Socket, error) {
	s, err := open(ctx, pattern, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.zsock.Listen(endpoint); err != nil {
		s.zsock.Close()
		return nil, fmt.Errorf("%w: listen on %s: %v", errs.ErrTransportClosed, endpoint, err)
	}
	s.bound = endpoint
	return s, nil
}

// Dial opens a client-role socket of the given pattern connected to one or
// more endpoints.
func Dial(ctx context.Context, pattern Pattern, cfg Config, endpoints ...string) (*Socket, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: no endpoints given", errs.ErrConfiguration)
	}
	s, err := open(ctx, pattern, cfg)
	if err != nil {
		return nil, err
	}
	for _, ep := range endpoints {
		if err := s.zsock.Dial(ep); err != nil {
			s.zsock.Close()
			return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrTransportClosed, ep, err)
		}
	}
	if pattern == SUB {
		if err := s.zsock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
			s.zsock.Close()
			return nil, fmt.Errorf("%w: subscribe: %v", errs.ErrConfiguration, err)
		}
	}
	return s, nil
}

func open(ctx context.Context, pattern Pattern, cfg Config) (*Socket, error) {
	if cfg.HWM == 0 {
		cfg.HWM = DefaultHWM
	}
	var opts []zmq4.Option
	if cfg.RecvTimeout > 0 {
		opts = append(opts, zmq4.WithTimeout(cfg.RecvTimeout))
	}
	zsock, err := newZMQSocket(ctx, pattern, opts...)
	if err != nil {
		return nil, err
	}
	if pattern == PUB || pattern == SUB {
		// Best effort: not every zmq4 transport backend honors a queue
		// depth option. The authoritative bound is the feed queue in
		// package server, which is what the spec actually relies on.
		_ = zsock.SetOption(zmq4.OptionHWM, cfg.HWM)
	}
	return &Socket{pattern: pattern, cfg: cfg, zsock: zsock}, nil
}

// Send transmits frames as one atomic multipart message.
func (s *Socket) Send(frames ...[]byte) error {
	if err := s.zsock.Send(zmq4.NewMsgFrom(frames...)); err != nil {
		return fmt.Errorf("%w: send: %v", errs.ErrTransportClosed, err)
	}
	return nil
}

// Recv blocks for one multipart message. A configured RecvTimeout surfaces
// as errs.ErrTimeout; any other failure surfaces as errs.ErrTransportClosed.
func (s *Socket) Recv() ([][]byte, error) {
	msg, err := s.zsock.Recv()
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: no message within %v", errs.ErrTimeout, s.cfg.RecvTimeout)
		}
		return nil, fmt.Errorf("%w: recv: %v", errs.ErrTransportClosed, err)
	}
	return msg.Frames, nil
}

func isTimeout(err error) bool {
	var nerr interface{ Timeout() bool }
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout")
}

// Close tears the socket down with zero linger, aborting any in-flight recv.
func (s *Socket) Close() error {
	return s.zsock.Close()
}

// Endpoint returns the address the socket is bound to, substituting
// "0.0.0.0" with the host's own name so clients are handed something they
// can actually dial.
func (s *Socket) Endpoint() string {
	if !strings.Contains(s.bound, "0.0.0.0") {
		return s.bound
	}
	host, err := os.Hostname()
	if err != nil {
		return s.bound
	}
	return strings.Replace(s.bound, "0.0.0.0", host, 1)
}

// Pattern returns the pattern the socket was opened with.
func (s *Socket) Pattern() Pattern { return s.pattern }
