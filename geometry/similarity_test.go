package geometry

import (
	"testing"

	"go.viam.com/test"
)

func TestDepthSimilar(t *testing.T) {
	cases := []struct {
		name       string
		d1, d2, tau float64
		want       bool
	}{
		{"identical", 2.0, 2.0, 0.01, true},
		{"within tolerance", 2.0, 2.01, 0.01, true},
		{"outside tolerance", 2.0, 2.5, 0.01, false},
		{"zero is never similar", 0, 2.0, 1, false},
		{"negative is never similar", -1, -1, 1, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			test.That(t, DepthSimilar(c.d1, c.d2, c.tau), test.ShouldEqual, c.want)
		})
	}
}

func TestDepthSimilarIsSymmetric(t *testing.T) {
	test.That(t, DepthSimilar(2.0, 2.02, 0.02), test.ShouldEqual, DepthSimilar(2.02, 2.0, 0.02))
}
