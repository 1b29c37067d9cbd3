// Package pricing estimates token counts and converts them to dollar cost.
//
// Token counts are a length/4 heuristic, not provider-reported usage. They are
// good enough for billing display and dashboards; hard quota enforcement lives
// in the external rate limiter with its own accounting.
package pricing

// Rate is USD per 1000 tokens, input and output priced separately.
type Rate struct {
	Input  float64
	Output float64
}

// defaultRate is applied to models missing from the table so cost tracking
// degrades gracefully for newly released models instead of erroring.
var defaultRate = Rate{Input: 0.01, Output: 0.03}

var rates = map[string]Rate{
	"gpt-4o":                   {Input: 0.0025, Output: 0.01},
	"gpt-4o-mini":              {Input: 0.00015, Output: 0.0006},
	"gpt-4-turbo":              {Input: 0.01, Output: 0.03},
	"gpt-3.5-turbo":            {Input: 0.0005, Output: 0.0015},
	"claude-3-opus-20240229":   {Input: 0.015, Output: 0.075},
	"claude-3-5-sonnet-latest": {Input: 0.003, Output: 0.015},
	"claude-3-5-haiku-latest":  {Input: 0.0008, Output: 0.004},
	"claude-3-haiku-20240307":  {Input: 0.00025, Output: 0.00125},
	"gemini-1.5-pro":           {Input: 0.00125, Output: 0.005},
	"gemini-1.5-flash":         {Input: 0.000075, Output: 0.0003},
	"gemini-2.0-flash":         {Input: 0.0001, Output: 0.0004},
}

// EstimateTokens approximates the token count of text as ceil(len/4).
// Monotonic in input length and deterministic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Cost converts token counts to USD. Input and output are computed
// independently so a partial table miss never zeroes the whole record.
func Cost(model string, inputTokens, outputTokens int) (inputCost, outputCost float64) {
	r, ok := rates[model]
	if !ok {
		r = defaultRate
	}
	inputCost = float64(inputTokens) / 1000 * r.Input
	outputCost = float64(outputTokens) / 1000 * r.Output
	return inputCost, outputCost
}
