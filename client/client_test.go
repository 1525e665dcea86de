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

package client

import (
	"context"
	"errors"
	"testing"

	"github.com/european-xfel/karabo-bridge-go/client/clientmock"
	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/european-xfel/karabo-bridge-go/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func withDialer(t *testing.T, fn func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error)) {
	t.Helper()
	orig := dialer
	dialer = fn
	t.Cleanup(func() { dialer = orig })
}

func trainFrames(t *testing.T) [][]byte {
	t.Helper()
	ser, err := wire.NewSerializer(wire.V2_2, false)
	require.NoError(t, err)
	frames, err := ser.Serialize(map[string]wire.PropertyBag{"s1": {"a": value.Int(1)}}, nil)
	require.NoError(t, err)
	return frames
}

func TestNextREQSendsRequestExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := clientmock.NewMockSocket(ctrl)

	withDialer(t, func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error) {
		return mock, nil
	})

	mock.EXPECT().Send([]byte("next")).Return(nil).Times(1)
	mock.EXPECT().Recv().Return(trainFrames(t), nil).Times(1)

	c, err := Dial(context.Background(), Config{Pattern: transport.REQ}, "tcp://127.0.0.1:4500")
	require.NoError(t, err)

	tr, err := c.Next(context.Background())
	require.NoError(t, err)
	require.Contains(t, tr.Data, "s1")
}

func TestPendingRequestNotResentAfterTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := clientmock.NewMockSocket(ctrl)

	withDialer(t, func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error) {
		return mock, nil
	})

	// "next" must be sent exactly once across a timeout + a successful retry.
	mock.EXPECT().Send([]byte("next")).Return(nil).Times(1)
	gomock.InOrder(
		mock.EXPECT().Recv().Return(nil, errs.ErrTimeout),
		mock.EXPECT().Recv().Return(trainFrames(t), nil),
	)

	c, err := Dial(context.Background(), Config{Pattern: transport.REQ}, "tcp://127.0.0.1:4500")
	require.NoError(t, err)

	_, err = c.Next(context.Background())
	require.True(t, errors.Is(err, errs.ErrTimeout))
	require.True(t, c.requestOutstanding)

	tr, err := c.Next(context.Background())
	require.NoError(t, err)
	require.Contains(t, tr.Data, "s1")
	require.False(t, c.requestOutstanding)
}

func TestPullPatternNeverSendsARequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := clientmock.NewMockSocket(ctrl)

	withDialer(t, func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error) {
		return mock, nil
	})

	mock.EXPECT().Recv().Return(trainFrames(t), nil).Times(1)
	// No Send expectation at all: any call would fail the test.

	c, err := Dial(context.Background(), Config{Pattern: transport.PULL}, "tcp://127.0.0.1:4501")
	require.NoError(t, err)

	_, err = c.Next(context.Background())
	require.NoError(t, err)
}

func TestNextWithPartitioningRequestLine(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := clientmock.NewMockSocket(ctrl)

	withDialer(t, func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error) {
		return mock, nil
	})

	mock.EXPECT().Send([]byte("next 4 2")).Return(nil)
	mock.EXPECT().Recv().Return(trainFrames(t), nil)

	c, err := Dial(context.Background(), Config{Pattern: transport.REQ}, "tcp://127.0.0.1:4502")
	require.NoError(t, err)

	_, err = c.NextWithPartitioning(context.Background(), 4, 2)
	require.NoError(t, err)
}

func TestDealerMergesRepliesAndStripsDelimiter(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockA := clientmock.NewMockSocket(ctrl)
	mockB := clientmock.NewMockSocket(ctrl)

	calls := 0
	withDialer(t, func(ctx context.Context, pattern transport.Pattern, cfg transport.Config, endpoint string) (socket, error) {
		calls++
		if calls == 1 {
			return mockA, nil
		}
		return mockB, nil
	})

	mockA.EXPECT().Send([]byte{}, []byte("next")).Return(nil)
	mockB.EXPECT().Send([]byte{}, []byte("next")).Return(nil)

	serA, err := wire.NewSerializer(wire.V2_2, false)
	require.NoError(t, err)
	framesA, err := serA.Serialize(map[string]wire.PropertyBag{"srcA": {"x": value.Int(1)}}, nil)
	require.NoError(t, err)
	framesB, err := serA.Serialize(map[string]wire.PropertyBag{"srcB": {"y": value.Int(2)}}, nil)
	require.NoError(t, err)

	mockA.EXPECT().Recv().Return(append([][]byte{{}}, framesA...), nil)
	mockB.EXPECT().Recv().Return(append([][]byte{{}}, framesB...), nil)

	c, err := Dial(context.Background(), Config{Pattern: transport.DEALER}, "tcp://endpoint-a:1", "tcp://endpoint-b:2")
	require.NoError(t, err)

	tr, err := c.Next(context.Background())
	require.NoError(t, err)
	require.Contains(t, tr.Data, "srcA")
	require.Contains(t, tr.Data, "srcB")
}
