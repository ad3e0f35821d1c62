package depth

import (
	"testing"

	"go.viam.com/test"
)

func TestDepthDataAcquireReleaseTriggersLoadUnload(t *testing.T) {
	dd := NewDepthData(1, nil)
	loads, unloads := 0, 0
	dd.Load = func(dd *DepthData) error { loads++; return nil }
	dd.Unload = func(dd *DepthData) { unloads++ }

	test.That(t, dd.Acquire(), test.ShouldBeNil)
	test.That(t, loads, test.ShouldEqual, 1)
	test.That(t, dd.RefCount(), test.ShouldEqual, int32(1))

	test.That(t, dd.Acquire(), test.ShouldBeNil)
	test.That(t, loads, test.ShouldEqual, 1) // second Acquire is a no-op 1->2 transition
	test.That(t, dd.RefCount(), test.ShouldEqual, int32(2))

	dd.Release()
	test.That(t, unloads, test.ShouldEqual, 0)
	test.That(t, dd.RefCount(), test.ShouldEqual, int32(1))

	dd.Release()
	test.That(t, unloads, test.ShouldEqual, 1)
	test.That(t, dd.RefCount(), test.ShouldEqual, int32(0))
}

func TestReferenceAndTargets(t *testing.T) {
	dd := NewDepthData(1, nil)
	test.That(t, dd.Reference(), test.ShouldResemble, ViewData{})
	test.That(t, dd.Targets(), test.ShouldBeNil)

	ref := ViewData{Scale: 1}
	n1 := ViewData{Scale: 0.5}
	n2 := ViewData{Scale: 0.25}
	dd.Views = []ViewData{ref, n1, n2}

	test.That(t, dd.Reference(), test.ShouldResemble, ref)
	test.That(t, dd.Targets(), test.ShouldResemble, []ViewData{n1, n2})
}

func TestScalarMapClearAndBounds(t *testing.T) {
	m := NewScalarMap(4, 3)
	test.That(t, m.In(3, 2), test.ShouldBeTrue)
	test.That(t, m.In(4, 2), test.ShouldBeFalse)
	test.That(t, m.In(-1, 0), test.ShouldBeFalse)

	m.Set(1, 1, 5)
	test.That(t, m.At(1, 1), test.ShouldEqual, 5.0)
	m.Clear(1, 1)
	test.That(t, m.At(1, 1), test.ShouldEqual, 0.0)
}
