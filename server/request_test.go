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
	"errors"
	"testing"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/stretchr/testify/require"
)

func TestParseRequestNext(t *testing.T) {
	req, err := parseRequest("next")
	require.NoError(t, err)
	require.False(t, req.Partitioned)
	require.True(t, req.Matches(0))
	require.True(t, req.Matches(12345))
}

func TestParseRequestPartitioned(t *testing.T) {
	req, err := parseRequest("next 4 2")
	require.NoError(t, err)
	require.True(t, req.Partitioned)
	require.Equal(t, 4, req.Divisor)
	require.Equal(t, 2, req.Remainder)
	require.True(t, req.Matches(6))
	require.False(t, req.Matches(7))
}

func TestParseRequestRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "nextish", "next 4", "next 4 2 1", "next 0 0", "next 4 4", "next a b"} {
		_, err := parseRequest(raw)
		require.Error(t, err, raw)
		require.True(t, errors.Is(err, errs.ErrProtocol), raw)
	}
}
