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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/stats"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/wire"
	log "github.com/sirupsen/logrus"
)

// trainJob is one queued (data, meta) pair awaiting transmission.
type trainJob struct {
	data map[string]wire.PropertyBag
	meta map[string]wire.Metadata
}

type requestMsg struct {
	req Request
	err error
}

// socket is the subset of transport.Socket the server needs. Accepting
// this narrow interface, rather than *transport.Socket, keeps the REP
// handshake state machine unit-testable without a real ZeroMQ socket; see
// the fakeSocket in server_test.go.
type socket interface {
	Send(frames ...[]byte) error
	Recv() ([][]byte, error)
	Close() error
	Endpoint() string
}

// listener abstracts transport.Listen so tests can substitute a fake.
var listener = func(ctx context.Context, pattern transport.Pattern, endpoint string, cfg transport.Config) (socket, error) {
	return transport.Listen(ctx, pattern, endpoint, cfg)
}

// Server is the Karabo Bridge sender: it owns one bound socket, a bounded
// feed queue decoupling producers from the network, and (for REP) the
// handshake state machine a blocking client drives with "next" requests.
type Server struct {
	cfg   Config
	sock  socket
	ser   *wire.Serializer
	stats stats.Stats

	queue chan trainJob

	stopCh   chan struct{}
	stopOnce sync.Once

	requestCh chan requestMsg // REP only
	ackCh     chan struct{}   // REP only: signals readRequests a reply was sent
}

// Listen binds a new Server per cfg. st may be nil, in which case metrics
// are simply not recorded.
func Listen(ctx context.Context, cfg Config, st stats.Stats) (*Server, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	sock, err := listener(ctx, cfg.Pattern, cfg.BindAddress, transport.Config{HWM: cfg.HWM})
	if err != nil {
		return nil, err
	}
	ser, err := wire.NewSerializer(cfg.ProtocolVersion, cfg.DummyTimestamps)
	if err != nil {
		sock.Close()
		return nil, err
	}

	srv := &Server{
		cfg:    cfg,
		sock:   sock,
		ser:    ser,
		stats:  st,
		queue:  make(chan trainJob, cfg.QueueLen),
		stopCh: make(chan struct{}),
	}
	if cfg.Pattern == transport.REP {
		srv.requestCh = make(chan requestMsg)
		srv.ackCh = make(chan struct{})
		go srv.readRequests()
	}
	return srv, nil
}

// Endpoint returns the address the server is bound to.
func (s *Server) Endpoint() string { return s.sock.Endpoint() }

// readRequests is the REP-only goroutine pumping incoming handshake
// requests. A malformed request is answered on the spot, keeping the REP
// socket's strict recv/send alternation intact without involving Send; a
// well-formed one is handed to Send via requestCh and readRequests waits
// for ackCh before issuing the next Recv.
func (s *Server) readRequests() {
	defer close(s.requestCh)
	for {
		frames, err := s.sock.Recv()
		if err != nil {
			if errors.Is(err, errs.ErrTransportClosed) {
				return
			}
			select {
			case s.requestCh <- requestMsg{err: err}:
				<-s.ackCh
			case <-s.stopCh:
				return
			}
			continue
		}
		payload := ""
		if len(frames) > 0 {
			payload = string(frames[0])
		}
		req, perr := parseRequest(payload)
		if perr != nil {
			if sendErr := s.sock.Send([]byte(fmt.Sprintf("Error: bad request %s", payload))); sendErr != nil {
				return
			}
			log.WithField("request", payload).Warn("karabo bridge: rejected malformed request")
			continue
		}
		select {
		case s.requestCh <- requestMsg{req: req}:
			<-s.ackCh
		case <-s.stopCh:
			return
		}
	}
}

// Feed enqueues a train for transmission. If block is false and the queue
// is at capacity, Feed returns an errs.ErrQueueFull error immediately
// instead of waiting for room.
func (s *Server) Feed(ctx context.Context, data map[string]wire.PropertyBag, meta map[string]wire.Metadata, block bool) error {
	job := trainJob{data: data, meta: meta}
	if !block {
		select {
		case s.queue <- job:
			return nil
		default:
			return fmt.Errorf("%w: queue at capacity (%d)", errs.ErrQueueFull, cap(s.queue))
		}
	}
	select {
	case s.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return fmt.Errorf("%w: server stopped while waiting for queue capacity", errs.ErrTransportClosed)
	}
}

// Send transmits one train. For REP it blocks until a handshake request is
// outstanding, honoring the request's partitioning predicate (the train is
// acknowledged with an empty reply and done=false if it does not match).
// For PUB/PUSH, which the spec defines as having no handshake, it sends
// immediately. Send is meant to be called by a single driver goroutine; see
// NewDriver.
func (s *Server) Send(data map[string]wire.PropertyBag, meta map[string]wire.Metadata) (done bool, err error) {
	if s.cfg.Pattern != transport.REP {
		return s.sendNow(data, meta)
	}

	select {
	case msg, ok := <-s.requestCh:
		if !ok {
			return false, fmt.Errorf("%w: server stopped", errs.ErrTransportClosed)
		}
		if msg.err != nil {
			s.ackCh <- struct{}{}
			return false, msg.err
		}
		if msg.req.Partitioned {
			tid, ok := firstTrainID(meta)
			if ok && !msg.req.Matches(tid) {
				sendErr := s.sock.Send([]byte{})
				s.ackCh <- struct{}{}
				return false, sendErr
			}
		}
		frames, encErr := s.ser.Serialize(data, meta)
		if encErr != nil {
			s.sock.Send([]byte(fmt.Sprintf("Error: %v", encErr)))
			s.ackCh <- struct{}{}
			return false, encErr
		}
		sendErr := s.sock.Send(frames...)
		s.ackCh <- struct{}{}
		if sendErr != nil {
			return false, sendErr
		}
		return true, nil
	case <-s.stopCh:
		return false, fmt.Errorf("%w: server stopped", errs.ErrTransportClosed)
	}
}

func (s *Server) sendNow(data map[string]wire.PropertyBag, meta map[string]wire.Metadata) (bool, error) {
	frames, err := s.ser.Serialize(data, meta)
	if err != nil {
		return false, err
	}
	if err := s.sock.Send(frames...); err != nil {
		return false, err
	}
	return true, nil
}

// firstTrainID returns the train ID carried by any one source's metadata,
// since a single request's partitioning predicate is evaluated against the
// train as a whole rather than per source.
func firstTrainID(meta map[string]wire.Metadata) (uint64, bool) {
	for _, m := range meta {
		if m.HasTrainID {
			return m.TrainID, true
		}
	}
	return 0, false
}

// Close stops accepting new work and tears the socket down. It does not
// wait for a Driver consuming the queue to drain; call Driver.Stop first.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return s.sock.Close()
}
