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

package simulation

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/european-xfel/karabo-bridge-go/wire"
)

// firstTrainID matches the legacy fixture generator's starting point, which
// several downstream tools assume is an 11-digit number.
const firstTrainID = 10000000000

// Generator is a pull-based, infinite source of synthetic trains for one
// detector configuration. It holds no state beyond its own train counter
// and random source: two Generators built from the same DetectorConfig are
// fully independent.
type Generator struct {
	cfg DetectorConfig
	geo geometry

	trainID uint64
	rnd     *rand.Rand

	// now supplies the wall clock; tests override it.
	now func() time.Time
}

// NewGenerator validates cfg and returns a ready Generator.
func NewGenerator(cfg DetectorConfig) (*Generator, error) {
	resolved, geo, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:     resolved,
		geo:     geo,
		trainID: firstTrainID,
		rnd:     rand.New(rand.NewSource(1)),
	}, nil
}

func (g *Generator) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}

// Next produces the next train in the sequence, advancing the internal
// train counter. The driver in package server is meant to be the sole
// consumer; Next applies no back-pressure of its own.
func (g *Generator) Next() (map[string]wire.PropertyBag, map[string]wire.Metadata) {
	tid := g.trainID
	g.trainID++

	bag, meta := g.genSource(tid)
	if g.cfg.NSources <= 1 {
		return map[string]wire.PropertyBag{g.cfg.Source: bag}, map[string]wire.Metadata{g.cfg.Source: meta}
	}

	data := make(map[string]wire.PropertyBag, g.cfg.NSources)
	metas := make(map[string]wire.Metadata, g.cfg.NSources)
	for i := 1; i <= g.cfg.NSources; i++ {
		src := fmt.Sprintf("%s-%d", g.cfg.Source, i)
		data[src] = bag
		m := meta
		m.Source = src
		metas[src] = m
	}
	return data, metas
}

func (g *Generator) genSource(tid uint64) (wire.PropertyBag, wire.Metadata) {
	shape := g.geo.dataShape(g.cfg.DataLike)
	dtype := g.geo.dtype(g.cfg.Raw)
	total := 1
	for _, d := range shape {
		total *= d
	}

	bag := wire.PropertyBag{
		"image.data":    value.NDArray(mustArray(dtype, shape, g.fillImage(total, dtype))),
		"image.cellId":  value.NDArray(mustArray(value.Uint16, []int{g.geo.pulses}, fillUint16Range(g.geo.pulses))),
		"image.pulseId": value.NDArray(mustArray(value.Uint64, []int{g.geo.pulses}, fillUint64Range(g.geo.pulses))),
		"image.trainId": value.NDArray(mustArray(value.Uint64, []int{g.geo.pulses}, fillUint64Const(g.geo.pulses, tid))),
		"image.gain":    value.NDArray(mustArray(value.Uint16, []int{g.geo.modY, g.geo.modX, g.geo.pulses}, make([]byte, g.geo.modY*g.geo.modX*g.geo.pulses*2))),
	}

	if !g.cfg.Raw {
		passport := g.corrPassport()
		list := make([]value.Value, len(passport))
		for i, p := range passport {
			list[i] = value.String(p)
		}
		bag["image.passport"] = value.List(list...)
	}

	if g.geo.modules > 1 {
		prefix := sourcePrefix(g.cfg.Source)
		sources := make([]value.Value, 16)
		for i := range sources {
			sources[i] = value.String(fmt.Sprintf("%s%dCH0:xtdf", prefix, i))
		}
		present := make([]value.Value, g.geo.modules)
		for i := range present {
			present[i] = value.Bool(true)
		}
		bag["sources"] = value.List(sources...)
		bag["modulesPresent"] = value.List(present...)
	}

	now := g.clock()
	sec := now.Unix()
	nanos := now.Nanosecond()
	meta := wire.Metadata{
		Source:           g.cfg.Source,
		HasTimestamp:     true,
		Timestamp:        float64(sec) + float64(nanos)/1e9,
		HasTimestampSec:  true,
		TimestampSec:     strconv.FormatInt(sec, 10),
		HasTimestampFrac: true,
		TimestampFrac:    fmt.Sprintf("%09d", nanos) + strings.Repeat("0", 9),
		HasTrainID:       true,
		TrainID:          tid,
	}
	return bag, meta
}

func (g *Generator) corrPassport() []string {
	domain, _, _ := strings.Cut(g.cfg.Source, "/")
	return []string{
		domain + "/CAL/THRESHOLDING_Q1M1",
		domain + "/CAL/OFFSET_CORR_Q1M1",
		domain + "/CAL/RELGAIN_CORR_Q1M1",
	}
}

// sourcePrefix returns everything up to and including the last "/" in
// source, the base onto which per-module channel suffixes are appended.
func sourcePrefix(source string) string {
	idx := strings.LastIndex(source, "/")
	if idx < 0 {
		return source + "/"
	}
	return source[:idx+1]
}

func (g *Generator) fillImage(total int, dtype value.DType) []byte {
	if g.cfg.Gen == GenZeros {
		return make([]byte, total*dtype.ItemSize())
	}
	switch dtype {
	case value.Uint16:
		return fillUint16Random(total, g.rnd)
	default:
		return fillFloat32Random(total, g.rnd)
	}
}

func fillUint16Random(n int, rnd *rand.Rand) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := uint16(1500 + rnd.Intn(100))
		binary.NativeEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

func fillFloat32Random(n int, rnd *rand.Rand) []byte {
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v := 1500 + rnd.Float32()*100
		binary.NativeEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func fillUint16Range(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.NativeEndian.PutUint16(buf[i*2:], uint16(i))
	}
	return buf
}

func fillUint64Range(n int) []byte {
	buf := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.NativeEndian.PutUint64(buf[i*8:], uint64(i))
	}
	return buf
}

func fillUint64Const(n int, v uint64) []byte {
	buf := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.NativeEndian.PutUint64(buf[i*8:], v)
	}
	return buf
}

func mustArray(dtype value.DType, shape []int, data []byte) *value.Array {
	arr, err := value.NewArray(dtype, shape, data)
	if err != nil {
		panic(fmt.Sprintf("simulation: internal shape/size mismatch: %v", err))
	}
	return arr
}
