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

// Package cmd implements kb-monitor, a Karabo Bridge client that prints a
// one-line summary of every train it receives.
package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/european-xfel/karabo-bridge-go/client"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/wire"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the main entry point. It's exported so kb-monitor could be
// easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "kb-monitor <endpoint>",
	Short: "print a summary line for every Karabo Bridge train received",
	Args:  cobra.ExactArgs(1),
	RunE:  runMonitor,
}

var (
	pattern         string
	protocolVersion string
	timeout         time.Duration
	partitioned     bool
	divisor         int
	remainder       int
	verbose         bool
)

func init() {
	flags := RootCmd.Flags()
	flags.StringVar(&pattern, "pattern", "REQ", "client socket pattern: REQ, SUB, PULL or DEALER")
	flags.StringVar(&protocolVersion, "protocol-version", string(wire.Default), "wire protocol version: 1.0, 2.1 or 2.2")
	flags.DurationVar(&timeout, "timeout", 0, "receive timeout, zero blocks indefinitely")
	flags.BoolVar(&partitioned, "partitioned", false, "issue \"next <divisor> <remainder>\" requests instead of plain \"next\"")
	flags.IntVar(&divisor, "divisor", 1, "partitioning divisor, only used with --partitioned")
	flags.IntVar(&remainder, "remainder", 0, "partitioning remainder, only used with --partitioned")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute is the main entry point for the CLI interface.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runMonitor(_ *cobra.Command, args []string) error {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := client.Config{
		Pattern:         transport.Pattern(pattern),
		ProtocolVersion: wire.Version(protocolVersion),
		Timeout:         timeout,
	}

	ctx := context.Background()
	c, err := client.Dial(ctx, cfg, args[0])
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", args[0], err)
	}
	defer c.Close()

	for {
		var (
			train wire.Train
			err   error
		)
		if partitioned {
			train, err = c.NextWithPartitioning(ctx, divisor, remainder)
		} else {
			train, err = c.Next(ctx)
		}
		if err != nil {
			return fmt.Errorf("receiving train: %w", err)
		}
		printTrain(train)
	}
}

func printTrain(t wire.Train) {
	sources := t.Sources()
	sort.Strings(sources)
	for _, src := range sources {
		m := t.Meta[src]
		var trainID string
		if m.HasTrainID {
			trainID = fmt.Sprintf("%d", m.TrainID)
		} else {
			trainID = "?"
		}
		fmt.Printf("train %s  source=%s  %s\n", trainID, src, shapeSummary(t.Data[src]))
	}
}

func shapeSummary(bag wire.PropertyBag) string {
	keys := make([]string, 0, len(bag))
	for k, v := range bag {
		if v.IsArray() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	summary := ""
	for _, k := range keys {
		arr := bag[k].Array
		if summary != "" {
			summary += " "
		}
		summary += fmt.Sprintf("%s%v(%s)", k, arr.Shape, arr.DType)
	}
	if summary == "" {
		return fmt.Sprintf("%d properties", len(bag))
	}
	return summary
}
