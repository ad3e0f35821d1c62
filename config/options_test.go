package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestDefaultIsInternallyConsistent(t *testing.T) {
	opts := Default()
	test.That(t, opts.NMinViews, test.ShouldBeGreaterThanOrEqualTo, 2)
	test.That(t, opts.NMaxViews, test.ShouldBeGreaterThanOrEqualTo, opts.NMinViews)
	test.That(t, opts.FMinAngle, test.ShouldBeLessThan, opts.FMaxAngle)
	test.That(t, opts.NOptimize&OptimizeRemoveSpeckles, test.ShouldNotEqual, Optimize(0))
	test.That(t, opts.NOptimize&OptimizeFillGaps, test.ShouldNotEqual, Optimize(0))
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.json")

	overrides := map[string]interface{}{"nMaxViews": 4, "bFilterAdjust": false}
	data, err := json.Marshal(overrides)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)

	opts, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.NMaxViews, test.ShouldEqual, 4)
	test.That(t, opts.BFilterAdjust, test.ShouldBeFalse)
	// Everything not present in the override file keeps Default's value.
	test.That(t, opts.NMinViews, test.ShouldEqual, Default().NMinViews)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
