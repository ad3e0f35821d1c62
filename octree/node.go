package octree

import (
	"github.com/golang/geo/r3"

	pc "github.com/viamdensify/mvs-depth-core/pointcloud"
)

// newLeafNodeEmpty creates an empty leaf node, representing an octant with no stored point.
func newLeafNodeEmpty() basicOctreeNode {
	return basicOctreeNode{nodeType: LeafNodeEmpty}
}

// newLeafNodeFilled creates a leaf node holding a single point and its data.
func newLeafNodeFilled(p r3.Vector, d pc.Data) basicOctreeNode {
	return basicOctreeNode{nodeType: LeafNodeFilled, point: pc.PointAndData{P: p, D: d}}
}

// newInternalNode creates an internal node linking to the given children octants.
func newInternalNode(children []*basicOctree) basicOctreeNode {
	return basicOctreeNode{nodeType: InternalNode, children: children}
}

// checkPointPlacement reports whether p falls within this octree's bounding cube,
// centered at octree.center with side length octree.sideLength.
func (octree *basicOctree) checkPointPlacement(p r3.Vector) bool {
	half := octree.sideLength / 2
	return p.X >= octree.center.X-half && p.X <= octree.center.X+half &&
		p.Y >= octree.center.Y-half && p.Y <= octree.center.Y+half &&
		p.Z >= octree.center.Z-half && p.Z <= octree.center.Z+half
}

// splitIntoOctants converts a filled leaf node into an internal node with eight
// child octants of half the side length, reinserting the leaf's existing point
// into whichever child now contains it.
func (octree *basicOctree) splitIntoOctants() error {
	existing := octree.node.point
	half := octree.sideLength / 2
	quarter := half / 2

	offsets := []r3.Vector{
		{X: -quarter, Y: -quarter, Z: -quarter},
		{X: quarter, Y: -quarter, Z: -quarter},
		{X: -quarter, Y: quarter, Z: -quarter},
		{X: quarter, Y: quarter, Z: -quarter},
		{X: -quarter, Y: -quarter, Z: quarter},
		{X: quarter, Y: -quarter, Z: quarter},
		{X: -quarter, Y: quarter, Z: quarter},
		{X: quarter, Y: quarter, Z: quarter},
	}

	children := make([]*basicOctree, 0, len(offsets))
	for _, off := range offsets {
		children = append(children, &basicOctree{
			logger:     octree.logger,
			node:       newLeafNodeEmpty(),
			center:     octree.center.Add(off),
			sideLength: half,
		})
	}

	octree.node = newInternalNode(children)

	for _, child := range children {
		if child.checkPointPlacement(existing.P) {
			child.node = newLeafNodeFilled(existing.P, existing.D)
			return nil
		}
	}

	return nil
}
