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
	"testing"
	"time"

	"github.com/european-xfel/karabo-bridge-go/internal/simulation"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/wire"
	"github.com/stretchr/testify/require"
)

func TestSimDriverFeedsTrainsWithoutAQueue(t *testing.T) {
	sock := newFakeSocket()
	withListener(t, sock)

	cfg := Config{StaticConfig: StaticConfig{Pattern: transport.PUSH, ProtocolVersion: wire.V2_2, BindAddress: "tcp://0.0.0.0:0"}}
	srv, err := Listen(context.Background(), cfg, nil)
	require.NoError(t, err)

	gen, err := simulation.NewGenerator(simulation.DetectorConfig{
		Detector: "AGIPDModule",
		Raw:      true,
		Gen:      simulation.GenZeros,
	})
	require.NoError(t, err)

	driver := NewSimDriver(srv, gen)
	driver.Run()

	require.Eventually(t, func() bool {
		sock.mu.Lock()
		defer sock.mu.Unlock()
		return len(sock.sent) >= 2
	}, time.Second, 5*time.Millisecond)

	driver.Stop()
	srv.Close()
}
