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
	log "github.com/sirupsen/logrus"
)

// Driver is the background dequeue-then-send loop (C5): it owns the single
// goroutine allowed to call Server.Send, so producers only ever touch
// Server.Feed and never race on the handshake socket.
//
// Stopping is a single Go select away from also releasing it: unlike a
// poll loop built over two independently readable file descriptors, a
// select across the queue channel and the stop channel already wakes
// immediately once stopCh is closed regardless of whether the queue is
// empty, so there is nothing extra to "unblock" the way a separate control
// socket would need.
type Driver struct {
	srv  *Server
	done chan struct{}
}

// NewDriver wraps srv with a background driver. Call Run to start it.
func NewDriver(srv *Server) *Driver {
	return &Driver{srv: srv, done: make(chan struct{})}
}

// Run starts the driver's loop in its own goroutine and returns
// immediately.
func (d *Driver) Run() {
	go d.loop()
}

func (d *Driver) loop() {
	defer close(d.done)
	for {
		select {
		case job, ok := <-d.srv.queue:
			if !ok {
				return
			}
			done, err := d.srv.Send(job.data, job.meta)
			switch {
			case err != nil && errors.Is(err, errs.ErrTransportClosed):
				return
			case err != nil:
				log.WithError(err).Warn("karabo bridge: send failed")
				if d.srv.stats != nil {
					d.srv.stats.IncEncodeError()
				}
			case done && d.srv.stats != nil:
				d.srv.stats.IncSent()
			case !done && d.srv.stats != nil:
				d.srv.stats.IncDropped()
			}
			if d.srv.stats != nil {
				d.srv.stats.SetQueueDepth(len(d.srv.queue))
			}
		case <-d.srv.stopCh:
			return
		}
	}
}

// Stop signals the driver to stop and blocks until its goroutine has
// returned. It is safe to call more than once.
func (d *Driver) Stop() {
	d.srv.stopOnce.Do(func() { close(d.srv.stopCh) })
	<-d.done
}
