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

// Package simulation generates synthetic trains shaped like the detectors
// the bridge was built to carry (AGIPD, LPD), for cmd/kb-simulate and for
// exercising server/client code paths without a real beamline. Every
// detector's geometry lives in an immutable config record; nothing here is
// process-wide mutable state.
package simulation

import (
	"fmt"

	"github.com/european-xfel/karabo-bridge-go/value"
)

// DataLike selects the axis ordering of generated image arrays.
type DataLike string

// The two axis orderings the original fixture generator produced. This is
// a test-fixture concern, not a protocol one: the wire codec preserves
// whatever shape it is given.
const (
	DataLikeOnline DataLike = "online" // (modules, fs, ss, pulses)
	DataLikeFile   DataLike = "file"   // (pulses, modules, ss, fs)
)

// GenFunc selects how pixel data is filled.
type GenFunc string

const (
	GenRandom GenFunc = "random"
	GenZeros  GenFunc = "zeros"
)

// geometry is one detector's fixed pixel layout.
type geometry struct {
	pulses  int
	modules int
	modY    int
	modX    int
}

var geometries = map[string]geometry{
	"AGIPD":       {pulses: 64, modules: 16, modY: 128, modX: 512},
	"AGIPDModule": {pulses: 64, modules: 1, modY: 128, modX: 512},
	"LPD":         {pulses: 300, modules: 16, modY: 256, modX: 256},
}

var defaultSource = map[string]string{
	"AGIPD":       "SPB_DET_AGIPD1M-1/CAL/APPEND_CORRECTED",
	"AGIPDModule": "SPB_DET_AGIPD1M-1/DET/0CH0:xtdf",
	"LPD":         "FXE_DET_LPD1M-1/CAL/APPEND_CORRECTED",
}

var defaultSourceRaw = map[string]string{
	"AGIPD":       "SPB_DET_AGIPD1M-1/CAL/APPEND_RAW",
	"AGIPDModule": "SPB_DET_AGIPD1M-1/DET/0CH0:xtdf",
	"LPD":         "FXE_DET_LPD1M-1/CAL/APPEND_RAW",
}

// DetectorConfig is an immutable description of one simulated detector
// source. Every Generator built from it is independent: there is no
// shared, process-wide detector state.
type DetectorConfig struct {
	Detector string // "AGIPD", "AGIPDModule" or "LPD"
	Source   string // defaulted from Detector/Raw when empty
	Raw      bool
	Gen      GenFunc
	DataLike DataLike
	NSources int // sources fanned out as "<source>-1".."<source>-N" when > 1
}

// resolve fills defaults and validates cfg, returning the geometry to
// generate against.
func (cfg DetectorConfig) resolve() (DetectorConfig, geometry, error) {
	geo, ok := geometries[cfg.Detector]
	if !ok {
		return cfg, geometry{}, fmt.Errorf("simulation: unknown detector %q", cfg.Detector)
	}
	if cfg.Detector == "AGIPDModule" && !cfg.Raw {
		return cfg, geometry{}, fmt.Errorf("simulation: corrected data for single AGIPD modules is not available")
	}
	if cfg.Source == "" {
		if cfg.Raw {
			cfg.Source = defaultSourceRaw[cfg.Detector]
		} else {
			cfg.Source = defaultSource[cfg.Detector]
		}
	}
	if cfg.Gen == "" {
		cfg.Gen = GenRandom
	}
	if cfg.Gen != GenRandom && cfg.Gen != GenZeros {
		return cfg, geometry{}, fmt.Errorf("simulation: unknown generator function %q", cfg.Gen)
	}
	if cfg.DataLike == "" {
		cfg.DataLike = DataLikeOnline
	}
	if cfg.DataLike != DataLikeOnline && cfg.DataLike != DataLikeFile {
		return cfg, geometry{}, fmt.Errorf("simulation: unknown data_like %q", cfg.DataLike)
	}
	if cfg.NSources <= 0 {
		cfg.NSources = 1
	}
	return cfg, geo, nil
}

// dataShape returns the generated image array's shape for the resolved
// geometry and data_like ordering.
func (g geometry) dataShape(dataLike DataLike) []int {
	var modulesDim []int
	if g.modules != 1 {
		modulesDim = []int{g.modules}
	}
	if dataLike == DataLikeOnline {
		shape := append([]int{}, modulesDim...)
		return append(shape, g.modY, g.modX, g.pulses)
	}
	shape := []int{g.pulses}
	shape = append(shape, modulesDim...)
	return append(shape, g.modX, g.modY)
}

func (g geometry) dtype(raw bool) value.DType {
	if raw {
		return value.Uint16
	}
	return value.Float32
}
