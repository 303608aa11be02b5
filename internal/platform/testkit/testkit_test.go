package testkit

import "testing"

func TestMustPanicCatchesPanic(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanicPasses(t *testing.T) {
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	MustContain(t, "the quick brown fox", "quick")
}

func TestSwapRestores(t *testing.T) {
	v := 1
	target := &v
	t.Run("inner", func(t *testing.T) {
		Swap(t, target, 2)
		if *target != 2 {
			t.Fatal("swap did not apply")
		}
	})
	if *target != 1 {
		t.Fatal("swap did not restore")
	}
}
