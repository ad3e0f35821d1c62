package pointcloud

import (
	"github.com/golang/geo/r3"
)

// PointAndData pairs a position with its associated Data.
type PointAndData struct {
	P r3.Vector
	D Data
}

// storage is the backing store for a PointCloud's points. It is kept small and
// unexported so that alternative backings (e.g. spatially indexed ones) can be
// swapped in without touching the PointCloud API.
type storage interface {
	Size() int
	At(x, y, z float64) (Data, bool)
	Set(p r3.Vector, d Data) error
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// matrixStorage is a simple slice+index backed storage implementation. It is not
// spatially optimized, trading query performance for simplicity.
type matrixStorage struct {
	points   []PointAndData
	indexMap map[r3.Vector]uint
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	idx, ok := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return ms.points[idx].D, true
}

func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if idx, ok := ms.indexMap[p]; ok {
		ms.points[idx].D = d
		return nil
	}
	ms.indexMap[p] = uint(len(ms.points))
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	return nil
}

// Iterate walks the points in this storage. numBatches and myBatch split the
// iteration into numBatches interleaved shards, allowing callers to process a
// cloud with concurrent workers; numBatches <= 0 iterates all points on a
// single shard, and myBatch is only consulted when numBatches > 0.
func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	if numBatches <= 0 {
		numBatches = 1
		myBatch = 0
	}
	for i, pd := range ms.points {
		if i%numBatches != myBatch {
			continue
		}
		if !fn(pd.P, pd.D) {
			return
		}
	}
}
