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
	"strconv"
	"testing"

	"github.com/european-xfel/karabo-bridge-go/value"
	"github.com/stretchr/testify/require"
)

func TestGeneratorAGIPDOnlineShape(t *testing.T) {
	gen, err := NewGenerator(DetectorConfig{Detector: "AGIPD", Raw: true, Gen: GenZeros, DataLike: DataLikeOnline})
	require.NoError(t, err)

	data, meta := gen.Next()
	require.Len(t, data, 1)
	bag := data[gen.cfg.Source]
	require.Equal(t, []int{16, 128, 512, 64}, bag["image.data"].Array.Shape)
	require.Equal(t, value.Uint16, bag["image.data"].Array.DType)

	m := meta[gen.cfg.Source]
	require.True(t, m.HasTrainID)
	require.Equal(t, uint64(firstTrainID), m.TrainID)
}

func TestGeneratorFileLikeShapeDiffersFromOnline(t *testing.T) {
	online, err := NewGenerator(DetectorConfig{Detector: "AGIPD", Raw: true, Gen: GenZeros, DataLike: DataLikeOnline})
	require.NoError(t, err)
	file, err := NewGenerator(DetectorConfig{Detector: "AGIPD", Raw: true, Gen: GenZeros, DataLike: DataLikeFile})
	require.NoError(t, err)

	dOnline, _ := online.Next()
	dFile, _ := file.Next()

	require.Equal(t, []int{16, 128, 512, 64}, dOnline[online.cfg.Source]["image.data"].Array.Shape)
	require.Equal(t, []int{64, 16, 512, 128}, dFile[file.cfg.Source]["image.data"].Array.Shape)
}

func TestGeneratorAdvancesTrainID(t *testing.T) {
	gen, err := NewGenerator(DetectorConfig{Detector: "LPD", Raw: true, Gen: GenZeros})
	require.NoError(t, err)

	_, meta1 := gen.Next()
	_, meta2 := gen.Next()

	require.Equal(t, uint64(firstTrainID), meta1[gen.cfg.Source].TrainID)
	require.Equal(t, uint64(firstTrainID+1), meta2[gen.cfg.Source].TrainID)
}

func TestGeneratorNSourcesFanOut(t *testing.T) {
	gen, err := NewGenerator(DetectorConfig{Detector: "LPD", Raw: true, Gen: GenZeros, NSources: 3})
	require.NoError(t, err)

	data, meta := gen.Next()
	require.Len(t, data, 3)
	require.Len(t, meta, 3)
	for i := 1; i <= 3; i++ {
		src := gen.cfg.Source + "-" + strconv.Itoa(i)
		require.Contains(t, data, src)
		require.Equal(t, src, meta[src].Source)
	}
}

func TestGeneratorRejectsUnknownDetector(t *testing.T) {
	_, err := NewGenerator(DetectorConfig{Detector: "NOPE"})
	require.Error(t, err)
}

func TestGeneratorRejectsCorrectedSingleModule(t *testing.T) {
	_, err := NewGenerator(DetectorConfig{Detector: "AGIPDModule", Raw: false})
	require.Error(t, err)
}
