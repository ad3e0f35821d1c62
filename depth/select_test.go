package depth

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viamdensify/mvs-depth-core/config"
	"github.com/viamdensify/mvs-depth-core/utils"
)

type fakeRanker struct {
	candidates []NeighborCandidate
	err        error
}

func (r *fakeRanker) Rank(refImageID int) ([]NeighborCandidate, error) {
	return r.candidates, r.err
}

func TestSelectViewsFiltersAndRanks(t *testing.T) {
	ranker := &fakeRanker{candidates: []NeighborCandidate{
		{ImageID: 2, Score: 10, AreaFraction: 0.5, ParallaxDeg: 10, ScaleRatio: 1},
		{ImageID: 3, Score: 5, AreaFraction: 0.5, ParallaxDeg: 10, ScaleRatio: 1},
		{ImageID: 4, Score: 20, AreaFraction: 0.01, ParallaxDeg: 10, ScaleRatio: 1},   // area too small
		{ImageID: 5, Score: 20, AreaFraction: 0.5, ParallaxDeg: 60, ScaleRatio: 1},    // parallax too wide
		{ImageID: 6, Score: 20, AreaFraction: 0.5, ParallaxDeg: 10, ScaleRatio: 5},    // scale ratio too wide
	}}
	opts := config.Default()

	got, err := SelectViews(ranker, 1, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 2)
	test.That(t, got[0].ImageID, test.ShouldEqual, 2) // higher score first
	test.That(t, got[1].ImageID, test.ShouldEqual, 3)
}

func TestSelectViewsCapsAtNMaxViews(t *testing.T) {
	var candidates []NeighborCandidate
	for i := 0; i < 20; i++ {
		candidates = append(candidates, NeighborCandidate{ImageID: i, Score: float64(i), AreaFraction: 0.5, ParallaxDeg: 10, ScaleRatio: 1})
	}
	opts := config.Default()
	opts.NMaxViews = 3

	got, err := SelectViews(&fakeRanker{candidates: candidates}, 1, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 3)
	test.That(t, got[0].ImageID, test.ShouldEqual, 19)
}

func TestSelectViewsFailsWhenInsufficient(t *testing.T) {
	opts := config.Default()
	_, err := SelectViews(&fakeRanker{candidates: nil}, 1, opts)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, utils.ErrViewSelectionInsufficient), test.ShouldBeTrue)
}

func TestSelectViewsPropagatesRankerError(t *testing.T) {
	boom := errors.New("boom")
	_, err := SelectViews(&fakeRanker{err: boom}, 1, config.Default())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
}
