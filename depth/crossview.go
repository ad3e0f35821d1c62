package depth

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/geometry"
)

type neighborView struct {
	cam *geometry.Camera
	dm  *ScalarMap
}

// CrossViewFilter re-examines every valid reference pixel against its
// neighbors' already-estimated depth maps (spec §4.5), in one of two modes
// selected by opts.BFilterAdjust:
//
//   - strict (false): two agreement tests, a tight one at
//     0.8*FDepthDiffThreshold requiring a 75% good ratio and
//     NMinViewsFilter agreeing neighbors, and a loose one at
//     1.2*FDepthDiffThreshold requiring 65% and 2*NMinViewsFilter. A pixel
//     passing neither is invalidated.
//   - adjust (true): accumulates positive (agreeing) and negative
//     (occlusion / free-space-violation) neighbor evidence; a pixel is
//     kept, with its depth replaced by the positive-evidence weighted
//     average, only if positive evidence outweighs negative and that
//     average falls within [DMin,DMax].
//
// dd.NeighborMaps must already be populated (InitViews with
// loadDepthMaps=1) and dd.Views[1:] must carry the matching cameras.
func CrossViewFilter(dd *DepthData, opts config.Options) {
	ref := dd.Reference()
	w, h := dd.DepthMap.Width(), dd.DepthMap.Height()

	var neighbors []neighborView
	for _, v := range dd.Targets() {
		dm, ok := dd.NeighborMaps[int(v.Image.ID)]
		if !ok || dm == nil {
			continue
		}
		neighbors = append(neighbors, neighborView{cam: v.Camera, dm: dm})
	}
	if len(neighbors) == 0 {
		return
	}

	tauNear := opts.FDepthDiffThreshold * 0.8
	tauFar := opts.FDepthDiffThreshold * 1.2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := dd.DepthMap.At(x, y)
			if d <= 0 {
				continue
			}
			if opts.BFilterAdjust {
				world := ref.Camera.ImageToWorld(float64(x), float64(y), d)
				filterAdjust(dd, opts, neighbors, x, y, world)
			} else {
				filterStrict(dd, opts, neighbors, tauNear, tauFar, x, y)
			}
		}
	}
}

func filterStrict(dd *DepthData, opts config.Options, neighbors []neighborView, tauNear, tauFar float64, x, y int) {
	d := dd.DepthMap.At(x, y)
	ref := dd.Reference()
	world := ref.Camera.ImageToWorld(float64(x), float64(y), d)

	nViews, nGood, nGoodWeak := 0, 0, 0
	for _, nb := range neighbors {
		nx, ny, nd := nb.cam.WorldToImage(world)
		sd, ok := sampleNearest(nb.dm, nx, ny)
		if !ok || sd <= 0 {
			continue
		}
		nViews++
		if geometry.DepthSimilar(nd, sd, tauNear) {
			nGood++
		}
		if geometry.DepthSimilar(nd, sd, tauFar) {
			nGoodWeak++
		}
	}
	if nViews == 0 {
		return
	}

	strictOK := float64(nGood)/float64(nViews) >= 0.75 && nGood >= opts.NMinViewsFilter
	looseOK := float64(nGoodWeak)/float64(nViews) >= 0.65 && nGoodWeak >= opts.NMinViewsFilter*2
	if !strictOK && !looseOK {
		dd.DepthMap.Clear(x, y)
		dd.NormalMap.Clear(x, y)
		dd.ConfMap.Clear(x, y)
	}
}

func filterAdjust(dd *DepthData, opts config.Options, neighbors []neighborView, x, y int, world r3.Vector) {
	tau := opts.FDepthDiffThreshold
	var nPos int
	var posConf, negConf, posDepthSum float64

	for _, nb := range neighbors {
		nx, ny, nd := nb.cam.WorldToImage(world)
		sd, ok := sampleNearest(nb.dm, nx, ny)
		if !ok || sd <= 0 {
			continue
		}
		const conf = 1.0 // no per-neighbor confidence map carried at this stage
		switch {
		case geometry.DepthSimilar(nd, sd, tau):
			nPos++
			posConf += conf
			posDepthSum += sd * conf
		case sd < nd:
			// the neighbor sees something nearer along this ray: occlusion
			// or free-space-violation evidence against the hypothesis.
			negConf += conf
		default:
			// the neighbor's point lies behind ours: ambiguous, no vote.
		}
	}

	if nPos >= opts.NMinViewsFilterAdjust && posConf > negConf && posConf > 0 {
		avg := posDepthSum / posConf
		if avg >= dd.DMin && avg <= dd.DMax {
			dd.DepthMap.Set(x, y, avg)
			return
		}
	}
	dd.DepthMap.Clear(x, y)
	dd.NormalMap.Clear(x, y)
	dd.ConfMap.Clear(x, y)
}

func sampleNearest(m *ScalarMap, x, y float64) (float64, bool) {
	ix, iy := int(math.Round(x)), int(math.Round(y))
	if !m.In(ix, iy) {
		return 0, false
	}
	return m.At(ix, iy), true
}
