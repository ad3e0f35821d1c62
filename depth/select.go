package depth

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/utils"
)

// NeighborCandidate is a scene-supplied overlap/parallax ranking entry for
// one potential neighbor of a reference image (spec §4.1). Produced by an
// external collaborator (sparse reconstruction / scene graph) outside this
// core's scope; see NeighborRanker.
type NeighborCandidate struct {
	ImageID      int
	Score        float64
	AreaFraction float64 // shared-area fraction with the reference
	ParallaxDeg  float64 // parallax angle, degrees
	ScaleRatio   float64 // neighbor scale / reference scale
}

// NeighborRanker supplies the scene's overlap/parallax ranking for a
// reference image: the out-of-scope collaborator SelectViews consults.
type NeighborRanker interface {
	Rank(refImageID int) ([]NeighborCandidate, error)
}

// SelectViews chooses neighbor views for refImageID by scoring parallax,
// scale and overlap (spec §4.1): minimum shared-area fraction, scale ratio
// within [0.2, 3.2], parallax angle within [FMinAngle, FMaxAngle], capped
// at NMaxViews. Fails with ErrViewSelectionInsufficient when fewer than
// two views remain.
func SelectViews(ranker NeighborRanker, refImageID int, opts config.Options) ([]NeighborScore, error) {
	candidates, err := ranker.Rank(refImageID)
	if err != nil {
		return nil, errors.Wrapf(err, "ranking neighbors of image %d", refImageID)
	}

	var kept []NeighborCandidate
	for _, c := range candidates {
		if c.AreaFraction < opts.FMinArea {
			continue
		}
		if c.ScaleRatio < 0.2 || c.ScaleRatio > 3.2 {
			continue
		}
		if c.ParallaxDeg < opts.FMinAngle || c.ParallaxDeg > opts.FMaxAngle {
			continue
		}
		kept = append(kept, c)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > opts.NMaxViews {
		kept = kept[:opts.NMaxViews]
	}

	if len(kept)+1 < opts.NMinViews {
		return nil, errors.Wrapf(utils.ErrViewSelectionInsufficient,
			"image %d: %d viable neighbors, need %d", refImageID, len(kept), opts.NMinViews-1)
	}

	out := make([]NeighborScore, len(kept))
	for i, c := range kept {
		out[i] = NeighborScore{ImageID: c.ImageID, Scale: c.ScaleRatio, Score: c.Score}
	}
	return out, nil
}
