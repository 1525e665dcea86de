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

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrometheusSnapshot(t *testing.T) {
	p := NewPrometheus("karabo_bridge_test")
	p.IncSent()
	p.IncSent()
	p.IncReceived()
	p.IncDropped()
	p.IncEncodeError()
	p.IncDecodeError()
	p.SetQueueDepth(3)

	snap := p.Snapshot()
	require.Equal(t, uint64(2), snap.Sent)
	require.Equal(t, uint64(1), snap.Received)
	require.Equal(t, uint64(1), snap.Dropped)
	require.Equal(t, uint64(1), snap.EncodeErrors)
	require.Equal(t, uint64(1), snap.DecodeErrors)
	require.Equal(t, 3, snap.QueueDepth)
}
