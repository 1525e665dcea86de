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

	"github.com/european-xfel/karabo-bridge-go/errs"
	"github.com/european-xfel/karabo-bridge-go/internal/simulation"
	log "github.com/sirupsen/logrus"
)

// SimDriver is the second background-driver shape: instead of dequeuing
// trains a producer fed via Feed, it pulls directly from a synthetic
// generator and calls Send, skipping the queue entirely. Used by
// cmd/kb-simulate.
type SimDriver struct {
	srv *Server
	gen *simulation.Generator

	done chan struct{}
}

// NewSimDriver wraps srv to drive gen's output straight onto the wire.
func NewSimDriver(srv *Server, gen *simulation.Generator) *SimDriver {
	return &SimDriver{srv: srv, gen: gen, done: make(chan struct{})}
}

// Run starts the driver's loop in its own goroutine and returns
// immediately.
func (d *SimDriver) Run() {
	go d.loop()
}

func (d *SimDriver) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.srv.stopCh:
			return
		default:
		}

		data, meta := d.gen.Next()
		done, err := d.srv.Send(data, meta)
		switch {
		case err != nil && errors.Is(err, errs.ErrTransportClosed):
			return
		case err != nil:
			log.WithError(err).Warn("karabo bridge: simulated send failed")
			if d.srv.stats != nil {
				d.srv.stats.IncEncodeError()
			}
		case done && d.srv.stats != nil:
			d.srv.stats.IncSent()
		case !done && d.srv.stats != nil:
			d.srv.stats.IncDropped()
		}
	}
}

// Stop signals the driver to stop and blocks until its goroutine returns.
func (d *SimDriver) Stop() {
	d.srv.stopOnce.Do(func() { close(d.srv.stopCh) })
	<-d.done
}
