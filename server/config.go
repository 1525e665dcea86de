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

// Package server implements the Karabo Bridge sender/server (C4) and its
// background driver (C5): a bounded-queue producer/network decoupling
// layer over the transport and wire packages.
package server

import (
	"fmt"
	"os"

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/wire"
	"gopkg.in/yaml.v2"
)

// DefaultQueueLen is the feed queue capacity used when DynamicConfig.QueueLen
// is zero or negative.
const DefaultQueueLen = 10

// StaticConfig holds options fixed for the lifetime of a Server: changing
// any of these requires rebinding a new one. Mirrors the teacher's
// static/dynamic config split (see ptp/ptp4u/server.Config).
type StaticConfig struct {
	Pattern         transport.Pattern // REP, PUB or PUSH
	ProtocolVersion wire.Version
	BindAddress     string // e.g. "tcp://0.0.0.0:0"
}

// DynamicConfig holds the options that can be loaded from a YAML file (see
// ReadDynamicConfig). They are read once by Listen; a running Server does
// not pick up changes to them.
type DynamicConfig struct {
	QueueLen        int
	HWM             int
	DummyTimestamps bool
}

// Config is the full Server configuration.
type Config struct {
	StaticConfig
	DynamicConfig
}

func (c *Config) normalize() error {
	switch c.Pattern {
	case transport.REP, transport.PUB, transport.PUSH:
	default:
		return fmt.Errorf("%w: server pattern must be one of REP, PUB, PUSH, got %q", errs.ErrConfiguration, c.Pattern)
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = wire.Default
	}
	if !c.ProtocolVersion.Valid() {
		return fmt.Errorf("%w: unsupported protocol_version %q", errs.ErrConfiguration, c.ProtocolVersion)
	}
	if c.BindAddress == "" {
		return fmt.Errorf("%w: BindAddress is required", errs.ErrConfiguration)
	}
	if c.QueueLen <= 0 {
		c.QueueLen = DefaultQueueLen
	}
	if c.HWM <= 0 {
		c.HWM = transport.DefaultHWM
	}
	return nil
}

// ReadDynamicConfig loads a DynamicConfig (queue length, HWM, dummy
// timestamps) from a YAML file. Pattern, protocol version and bind address
// are not part of it. The result takes effect only when passed to Listen.
func ReadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dc := &DynamicConfig{}
	if err := yaml.Unmarshal(data, dc); err != nil {
		return nil, err
	}
	return dc, nil
}

// Write persists dc as YAML to path.
func (dc *DynamicConfig) Write(path string) error {
	data, err := yaml.Marshal(dc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
