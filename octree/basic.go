package octree

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/logging"
	pc "github.com/viamdensify/mvs-depth-core/pointcloud"
)

// basicOctree is a data structure that represents a basic octree structure with information regarding center
// point, side length and node data.
type basicOctree struct {
	logger     logging.Logger
	node       basicOctreeNode
	center     r3.Vector
	sideLength float64
	size       int32
	meta       pc.MetaData
}

// basicOctreeNode is a struct comprised of the type of node, children nodes (should they exist) and the pointcloud's
// PointAndData datatype representing a point in space.
type basicOctreeNode struct {
	nodeType NodeType
	children []*basicOctree
	point    pc.PointAndData
}

// New creates a new basic octree with specified center, side and metadata.
func New(ctx context.Context, center r3.Vector, sideLength float64, logger logging.Logger) (Octree, error) {
	if sideLength <= 0 {
		return nil, errors.Errorf("invalid side length (%.2f) for octree", sideLength)
	}

	octree := &basicOctree{
		logger:     logger,
		node:       newLeafNodeEmpty(),
		center:     center,
		sideLength: sideLength,
		size:       0,
		meta:       pc.NewMetaData(),
	}

	return octree, nil
}

// Size returns the number of points stored in the octree's metadata.
func (octree *basicOctree) Size() int {
	return int(octree.size)
}

// Set checks if the point to be added is a valid point for a basic octree to contain based on its center and side
// length. It then recursively iterates through the tree until it finds the appropriate node to add it to. If the
// found node contains a point already, it will split the node into octants and will add both the old point and new
// one to the newly created children trees.
func (octree *basicOctree) Set(p r3.Vector, d pc.Data) error {
	if (pc.PointAndData{P: p, D: d} == pc.PointAndData{}) {
		octree.logger.Debugw("no data given, skipping insertion")
		return nil
	}

	if !octree.checkPointPlacement(p) {
		return errors.New("error point is outside the bounds of this octree")
	}

	switch octree.node.nodeType {
	case InternalNode:
		for _, childNode := range octree.node.children {
			if childNode.checkPointPlacement(p) {
				err := childNode.Set(p, d)
				if err == nil {
					// Update metadata
					octree.meta.Merge(p, d)
					octree.size++
				}
				return err
			}
		}
		return errors.New("error invalid internal node detected, please check your tree")

	case LeafNodeFilled:
		if _, exists := octree.At(p.X, p.Y, p.Z); exists {
			// Update data in point
			octree.node.point.D = d
			return nil
		}
		if err := octree.splitIntoOctants(); err != nil {
			return errors.Errorf("error in splitting octree into new octants: %v", err)
		}
		// No update of metadata as the set call below will lead to the InternalNode case due to the octant split
		return octree.Set(p, d)

	case LeafNodeEmpty:
		// Update metadata
		octree.meta.Merge(p, d)
		octree.size++
		octree.node = newLeafNodeFilled(p, d)
	}

	return nil
}

// At traverses a basic octree to see if a point exists at the specified location. If a point does exist, its data
// is returned along with true. If a point does not exist, no data is returned and the boolean is returned false.
func (octree *basicOctree) At(x, y, z float64) (pc.Data, bool) {
	// Check if point could exist in octree given bounds
	if !octree.checkPointPlacement(r3.Vector{X: x, Y: y, Z: z}) {
		return nil, false
	}

	switch octree.node.nodeType {
	case InternalNode:
		for _, child := range octree.node.children {
			d, exists := child.At(x, y, z)
			if exists {
				return d, true
			}
		}

	case LeafNodeFilled:
		if octree.node.point.P.ApproxEqual(r3.Vector{X: x, Y: y, Z: z}) {
			return octree.node.point.D, true
		}

	case LeafNodeEmpty:
	}

	return nil, false
}

// Iterate walks every point stored in the octree, recursing through
// internal nodes in child order. numBatches/myBatch follow
// pointcloud.storage's sharding convention: numBatches <= 0 iterates
// everything on a single shard. The callback's bool return stops the
// walk early, propagated back up through the recursion.
func (octree *basicOctree) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d pc.Data) bool) {
	if numBatches <= 0 {
		numBatches = 1
		myBatch = 0
	}
	octree.iterate(numBatches, myBatch, &[]int{0}[0], fn)
}

// iterate is the recursive worker behind Iterate. idx counts filled
// leaves visited so far (shared across the whole subtree via pointer) so
// that sharding is applied consistently regardless of tree shape.
func (octree *basicOctree) iterate(numBatches, myBatch int, idx *int, fn func(p r3.Vector, d pc.Data) bool) bool {
	switch octree.node.nodeType {
	case InternalNode:
		for _, child := range octree.node.children {
			if !child.iterate(numBatches, myBatch, idx, fn) {
				return false
			}
		}
	case LeafNodeFilled:
		mine := *idx%numBatches == myBatch
		*idx++
		if mine {
			return fn(octree.node.point.P, octree.node.point.D)
		}
	case LeafNodeEmpty:
	}
	return true
}

// MarshalOctree TODO: Implement marshalling for octree.
func (octree *basicOctree) MarshalOctree() ([]byte, error) {
	return nil, nil
}

// Metadata returns the metadata of the pointcloud stored in the octree.
func (octree *basicOctree) MetaData() pc.MetaData {
	return octree.meta
}
