package testutil

import "testing"

// Given, When, Then and And run fn as a named subtest so journey tests read
// as a scenario in verbose output. A failed step stops the scenario.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And", desc, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run(keyword+" "+desc, fn) {
		t.FailNow()
	}
}
