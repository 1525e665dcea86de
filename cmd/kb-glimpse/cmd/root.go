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

// Package cmd implements kb-glimpse, a one-shot Karabo Bridge client that
// dumps a single decoded train as indented JSON for inspection.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/european-xfel/karabo-bridge-go/client"
	"github.com/european-xfel/karabo-bridge-go/transport"
	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/european-xfel/karabo-bridge-go/wire"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the main entry point. It's exported so kb-glimpse could be
// easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "kb-glimpse <endpoint>",
	Short: "dump a single decoded Karabo Bridge train as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runGlimpse,
}

var (
	pattern         string
	protocolVersion string
	verbose         bool
)

func init() {
	flags := RootCmd.Flags()
	flags.StringVar(&pattern, "pattern", "REQ", "client socket pattern: REQ, SUB, PULL or DEALER")
	flags.StringVar(&protocolVersion, "protocol-version", string(wire.Default), "wire protocol version: 1.0, 2.1 or 2.2")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute is the main entry point for the CLI interface.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runGlimpse(_ *cobra.Command, args []string) error {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := client.Config{
		Pattern:         transport.Pattern(pattern),
		ProtocolVersion: wire.Version(protocolVersion),
	}

	ctx := context.Background()
	c, err := client.Dial(ctx, cfg, args[0])
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", args[0], err)
	}
	defer c.Close()

	train, err := c.Next(ctx)
	if err != nil {
		return fmt.Errorf("receiving train: %w", err)
	}

	out, err := json.MarshalIndent(trainToJSON(train), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding train: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// trainToJSON converts a train into a JSON-friendly tree. Arrays are
// summarized by dtype and shape rather than dumped element-by-element,
// since a glimpse is for inspecting structure, not for bulk data export.
func trainToJSON(t wire.Train) map[string]any {
	out := make(map[string]any, len(t.Data))
	for src, bag := range t.Data {
		props := make(map[string]any, len(bag))
		for k, v := range bag {
			props[k] = valueToJSON(v)
		}
		out[src] = map[string]any{
			"metadata":   metaToJSON(t.Meta[src]),
			"properties": props,
		}
	}
	return out
}

func metaToJSON(m wire.Metadata) map[string]any {
	meta := map[string]any{"source": m.Source}
	if m.HasTrainID {
		meta["trainId"] = m.TrainID
	}
	if m.HasTimestamp {
		meta["timestamp"] = m.Timestamp
	}
	if m.HasTimestampSec {
		meta["timestampSec"] = m.TimestampSec
	}
	if m.HasTimestampFrac {
		meta["timestampFrac"] = m.TimestampFrac
	}
	return meta
}

func valueToJSON(v value.Value) any {
	switch v.Kind {
	case value.KindNil:
		return nil
	case value.KindBool:
		return v.Bool
	case value.KindInt:
		return v.Int
	case value.KindUint:
		return v.Uint
	case value.KindFloat:
		return v.Float
	case value.KindString:
		return v.Str
	case value.KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	case value.KindList:
		list := make([]any, len(v.List))
		for i, e := range v.List {
			list[i] = valueToJSON(e)
		}
		return list
	case value.KindMap:
		m := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			m[k] = valueToJSON(e)
		}
		return m
	case value.KindArray:
		return map[string]any{
			"dtype": string(v.Array.DType),
			"shape": v.Array.Shape,
		}
	default:
		return nil
	}
}
