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

// Package cmd implements kb-simulate, a Karabo Bridge server that feeds
// synthetic AGIPD/LPD trains instead of data from a real beamline.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/european-xfel/karabo-bridge-go/internal/simulation"
	"github.com/european-xfel/karabo-bridge-go/server"
	"github.com/european-xfel/karabo-bridge-go/stats"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/wire"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the main entry point. It's exported so kb-simulate could be
// easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "kb-simulate",
	Short: "serve synthetic Karabo Bridge trains",
	RunE:  runSimulate,
}

var (
	bindAddress     string
	pattern         string
	protocolVersion string
	detector        string
	source          string
	raw             bool
	dataLike        string
	genFunc         string
	nSources        int
	dummyTimestamps bool
	queueLen        int
	monitoringPort  int
	verbose         bool
)

func init() {
	flags := RootCmd.Flags()
	flags.StringVar(&bindAddress, "bind", "tcp://0.0.0.0:4545", "address to bind the server socket on")
	flags.StringVar(&pattern, "pattern", "REP", "server socket pattern: REP, PUB or PUSH")
	flags.StringVar(&protocolVersion, "protocol-version", string(wire.Default), "wire protocol version: 1.0, 2.1 or 2.2")
	flags.StringVar(&detector, "detector", "AGIPD", "detector to simulate: AGIPD, AGIPDModule or LPD")
	flags.StringVar(&source, "source", "", "source name override (defaulted from detector/raw when empty)")
	flags.BoolVar(&raw, "raw", true, "emit raw (uncorrected) data instead of calibrated float32 data")
	flags.StringVar(&dataLike, "data-like", string(simulation.DataLikeOnline), "array axis ordering: online or file")
	flags.StringVar(&genFunc, "gen", string(simulation.GenRandom), "pixel fill strategy: random or zeros")
	flags.IntVar(&nSources, "nsources", 1, "number of sources to fan the detector out across")
	flags.BoolVar(&dummyTimestamps, "dummy-timestamps", false, "fill in wall-clock timestamps for sources whose metadata has none")
	flags.IntVar(&queueLen, "queue", server.DefaultQueueLen, "feed queue capacity")
	flags.IntVar(&monitoringPort, "monitoringport", 8080, "port to serve /metrics on, 0 disables it")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute is the main entry point for the CLI interface.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runSimulate(_ *cobra.Command, _ []string) error {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := server.Config{
		StaticConfig: server.StaticConfig{
			Pattern:         transport.Pattern(pattern),
			ProtocolVersion: wire.Version(protocolVersion),
			BindAddress:     bindAddress,
		},
		DynamicConfig: server.DynamicConfig{
			QueueLen:        queueLen,
			DummyTimestamps: dummyTimestamps,
		},
	}

	var st *stats.Prometheus
	if monitoringPort > 0 {
		st = stats.NewPrometheus("karabo_bridge_sim")
		go func() {
			if err := st.ListenAndServe(monitoringPort); err != nil {
				log.WithError(err).Error("karabo bridge: monitoring server stopped")
			}
		}()
	}

	ctx := context.Background()
	var srv *server.Server
	var err error
	// st must stay nil as the stats.Stats interface, not a typed-nil
	// *Prometheus, or Server's "st != nil" checks would misfire.
	if st != nil {
		srv, err = server.Listen(ctx, cfg, st)
	} else {
		srv, err = server.Listen(ctx, cfg, nil)
	}
	if err != nil {
		return fmt.Errorf("binding server: %w", err)
	}
	defer srv.Close()

	gen, err := simulation.NewGenerator(simulation.DetectorConfig{
		Detector: detector,
		Source:   source,
		Raw:      raw,
		Gen:      simulation.GenFunc(genFunc),
		DataLike: simulation.DataLike(dataLike),
		NSources: nSources,
	})
	if err != nil {
		return fmt.Errorf("configuring simulated detector: %w", err)
	}

	log.Infof("karabo bridge: serving %s on %s (%s/%s)", detector, srv.Endpoint(), cfg.Pattern, cfg.ProtocolVersion)

	driver := server.NewSimDriver(srv, gen)
	driver.Run()

	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	<-sigStop
	log.Warning("karabo bridge: graceful shutdown")
	driver.Stop()
	return nil
}
