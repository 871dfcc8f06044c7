package accesslevel

import "testing"

func TestRankOrdering(t *testing.T) {
	ordered := Levels()

	if len(ordered) != 5 {
		t.Fatalf("Expected 5 levels, got %d", len(ordered))
	}

	for i, level := range ordered {
		if Rank(level) != i {
			t.Errorf("Rank(%s) = %d, expected %d", level, Rank(level), i)
		}
	}
}

func TestRankUnknownLevel(t *testing.T) {
	if Rank(Level("secret")) != -1 {
		t.Error("Unknown level should rank -1")
	}
}

func TestSatisfiesMatchesRankComparison(t *testing.T) {
	// satisfies(a, b) must equal rank(a) >= rank(b) for every pair
	for _, a := range Levels() {
		for _, b := range Levels() {
			expected := Rank(a) >= Rank(b)
			if Satisfies(a, b) != expected {
				t.Errorf("Satisfies(%s, %s) = %v, expected %v", a, b, Satisfies(a, b), expected)
			}
		}
	}
}

func TestSatisfiesRejectsUnknownLevels(t *testing.T) {
	if Satisfies(Level("secret"), Public) {
		t.Error("Unknown effective level should not satisfy anything")
	}
	if Satisfies(Full, Level("secret")) {
		t.Error("Unknown required level should never be satisfied")
	}
}

func TestStrictOrderNoTies(t *testing.T) {
	ordered := Levels()
	for i := 1; i < len(ordered); i++ {
		if Rank(ordered[i-1]) >= Rank(ordered[i]) {
			t.Errorf("Hierarchy must be strictly increasing: %s vs %s", ordered[i-1], ordered[i])
		}
	}
}

func TestMaxAndCap(t *testing.T) {
	if Max(Teaser, Financials) != Financials {
		t.Error("Max should return the higher-ranked level")
	}
	if Max(Full, Public) != Full {
		t.Error("Max should return the higher-ranked level regardless of argument order")
	}
	if Cap(Full, Teaser) != Teaser {
		t.Error("Cap should apply the ceiling when the level exceeds it")
	}
	if Cap(Public, Teaser) != Public {
		t.Error("Cap should leave levels below the ceiling unchanged")
	}
}

func TestValid(t *testing.T) {
	for _, level := range Levels() {
		if !Valid(level) {
			t.Errorf("%s should be valid", level)
		}
	}
	if Valid(Level("")) {
		t.Error("Empty level should be invalid")
	}
}
