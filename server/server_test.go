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
	"sync"
	"testing"
	"time"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/european-xfel/karabo-bridge-go/wire"
	"github.com/stretchr/testify/require"
)

// fakeSocket is an in-process stand-in for transport.Socket: requests
// queued by the test are handed out one at a time from recvQueue, and
// every outgoing frame set is recorded in sent.
type fakeSocket struct {
	mu        sync.Mutex
	recvQueue [][][]byte
	recvErr   []error
	sent      [][][]byte
	closed    bool
}

func newFakeSocket() *fakeSocket { return &fakeSocket{} }

func (f *fakeSocket) pushRecv(frames [][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recvQueue = append(f.recvQueue, frames)
	f.recvErr = append(f.recvErr, nil)
}

func (f *fakeSocket) pushRecvErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recvQueue = append(f.recvQueue, nil)
	f.recvErr = append(f.recvErr, err)
}

func (f *fakeSocket) Recv() ([][]byte, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return nil, errs.ErrTransportClosed
		}
		if len(f.recvQueue) > 0 {
			frames, err := f.recvQueue[0], f.recvErr[0]
			f.recvQueue = f.recvQueue[1:]
			f.recvErr = f.recvErr[1:]
			f.mu.Unlock()
			return frames, err
		}
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeSocket) Send(frames ...[]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frames)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) Endpoint() string { return "tcp://fake:1" }

func (f *fakeSocket) lastSent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func withListener(t *testing.T, sock *fakeSocket) {
	t.Helper()
	orig := listener
	listener = func(ctx context.Context, pattern transport.Pattern, endpoint string, cfg transport.Config) (socket, error) {
		return sock, nil
	}
	t.Cleanup(func() { listener = orig })
}

func repConfig() Config {
	return Config{
		StaticConfig: StaticConfig{Pattern: transport.REP, ProtocolVersion: wire.V2_2, BindAddress: "tcp://0.0.0.0:0"},
	}
}

func TestRepHandshakeEmitsOnNext(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	srv, err := Listen(context.Background(), repConfig(), nil)
	require.NoError(t, err)
	defer srv.Close()

	sock.pushRecv([][]byte{[]byte("next")})

	data := map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}
	done, err := srv.Send(data, nil)
	require.NoError(t, err)
	require.True(t, done)

	frames := sock.lastSent()
	require.NotEmpty(t, frames)
	tr, err := wire.Deserialize(frames)
	require.NoError(t, err)
	require.Contains(t, tr.Data, "s1")
}

func TestRepRejectsMalformedRequestWithoutConsumingSend(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	srv, err := Listen(context.Background(), repConfig(), nil)
	require.NoError(t, err)
	defer srv.Close()

	sock.pushRecv([][]byte{[]byte("bogus")})
	sock.pushRecv([][]byte{[]byte("next")})

	data := map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}
	done, err := srv.Send(data, nil)
	require.NoError(t, err)
	require.True(t, done)

	// Two replies were sent: the bad-request error and the real train.
	require.Len(t, sock.sent, 2)
	require.Contains(t, string(sock.sent[0][0]), "Error: bad request bogus")
}

func TestRepPartitioningSkipsMismatchedTrain(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	srv, err := Listen(context.Background(), repConfig(), nil)
	require.NoError(t, err)
	defer srv.Close()

	sock.pushRecv([][]byte{[]byte("next 4 2")})

	meta := map[string]wire.Metadata{"s1": {HasTrainID: true, TrainID: 7}} // 7 % 4 == 3, not 2
	done, err := srv.Send(map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}, meta)
	require.NoError(t, err)
	require.False(t, done)

	frames := sock.lastSent()
	require.Len(t, frames, 1)
	require.Empty(t, frames[0])
}

func TestRepPartitioningEmitsMatchingTrain(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	srv, err := Listen(context.Background(), repConfig(), nil)
	require.NoError(t, err)
	defer srv.Close()

	sock.pushRecv([][]byte{[]byte("next 4 2")})

	meta := map[string]wire.Metadata{"s1": {HasTrainID: true, TrainID: 6}} // 6 % 4 == 2
	done, err := srv.Send(map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}, meta)
	require.NoError(t, err)
	require.True(t, done)
}

func TestPubSendsWithoutHandshake(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	cfg := Config{StaticConfig: StaticConfig{Pattern: transport.PUB, ProtocolVersion: wire.V2_2, BindAddress: "tcp://0.0.0.0:0"}}
	srv, err := Listen(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer srv.Close()

	done, err := srv.Send(map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}, nil)
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, sock.sent, 1)
}

func TestFeedNonBlockingReturnsQueueFullAtCapacity(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	cfg := Config{
		StaticConfig:  StaticConfig{Pattern: transport.PUSH, ProtocolVersion: wire.V2_2, BindAddress: "tcp://0.0.0.0:0"},
		DynamicConfig: DynamicConfig{QueueLen: 2},
	}
	srv, err := Listen(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer srv.Close()

	ctx := context.Background()
	data := map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}
	require.NoError(t, srv.Feed(ctx, data, nil, false))
	require.NoError(t, srv.Feed(ctx, data, nil, false))

	err = srv.Feed(ctx, data, nil, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrQueueFull))
}

func TestDriverDrainsQueueAndStops(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	cfg := Config{StaticConfig: StaticConfig{Pattern: transport.PUSH, ProtocolVersion: wire.V2_2, BindAddress: "tcp://0.0.0.0:0"}}
	srv, err := Listen(context.Background(), cfg, nil)
	require.NoError(t, err)

	driver := NewDriver(srv)
	driver.Run()

	data := map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}
	require.NoError(t, srv.Feed(context.Background(), data, nil, true))

	require.Eventually(t, func() bool {
		sock.mu.Lock()
		defer sock.mu.Unlock()
		return len(sock.sent) == 1
	}, time.Second, 5*time.Millisecond)

	driver.Stop()
	srv.Close()
}
