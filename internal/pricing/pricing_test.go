package pricing

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world, this is a test", 7},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.text); got != c.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	prev := 0
	text := ""
	for i := 0; i < 100; i++ {
		text += "word "
		got := EstimateTokens(text)
		if got < prev {
			t.Fatalf("estimate decreased from %d to %d at length %d", prev, got, len(text))
		}
		prev = got
	}
}

func TestCostKnownModel(t *testing.T) {
	in, out := Cost("gpt-4o", 1000, 1000)
	if in <= 0 || out <= 0 {
		t.Fatalf("expected positive costs, got %f / %f", in, out)
	}
	if out <= in {
		t.Errorf("output tokens should cost more than input for gpt-4o: in=%f out=%f", in, out)
	}

	// Costs scale linearly and independently
	in2, out2 := Cost("gpt-4o", 2000, 1000)
	if in2 != 2*in {
		t.Errorf("input cost should double: %f vs %f", in2, in)
	}
	if out2 != out {
		t.Errorf("output cost should be unchanged: %f vs %f", out2, out)
	}
}

func TestCostUnknownModelFallback(t *testing.T) {
	in, out := Cost("some-future-model", 1000, 1000)
	if in <= 0 || out <= 0 {
		t.Errorf("unknown model must fall back to default rates, got %f / %f", in, out)
	}
}

func TestCostZeroTokens(t *testing.T) {
	in, out := Cost("gpt-4o", 0, 0)
	if in != 0 || out != 0 {
		t.Errorf("zero tokens must cost nothing, got %f / %f", in, out)
	}
}
