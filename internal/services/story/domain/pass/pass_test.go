package pass

import "testing"

func TestClearOnPost(t *testing.T) {
	cases := []struct {
		name  string
		state State
		want  State
	}{
		{"none stays none", StateNone, StateNone},
		{"passed reverts to none", StatePassed, StateNone},
		{"hard pass survives activity", StateHardPassed, StateHardPassed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.state.ClearOnPost(); got != tc.want {
				t.Fatalf("ClearOnPost(%v) = %v, want %v", tc.state, got, tc.want)
			}
		})
	}
}

func TestUpgradeOnWindowExpiry(t *testing.T) {
	for _, state := range []State{StateNone, StatePassed, StateHardPassed} {
		if got := state.UpgradeOnWindowExpiry(); got != StateHardPassed {
			t.Fatalf("UpgradeOnWindowExpiry(%v) = %v, want %v", state, got, StateHardPassed)
		}
	}
}

func TestReady(t *testing.T) {
	if StateNone.Ready() {
		t.Fatal("none should not be ready")
	}
	if !StatePassed.Ready() {
		t.Fatal("passed should be ready")
	}
	if !StateHardPassed.Ready() {
		t.Fatal("hard passed should be ready")
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, state := range []State{StateNone, StatePassed, StateHardPassed} {
		parsed, ok := Parse(state.String())
		if !ok {
			t.Fatalf("parse %q failed", state.String())
		}
		if parsed != state {
			t.Fatalf("parse(%q) = %v, want %v", state.String(), parsed, state)
		}
	}
	if _, ok := Parse("bogus"); ok {
		t.Fatal("expected parse failure for unknown state")
	}
}
