package history

// DefaultTokenLimit applies to models missing from the table.
const DefaultTokenLimit = 1_048_576

// CompressionThreshold is the fraction of the context window at which
// compression kicks in.
const CompressionThreshold = 0.95

// Context window sizes per https://ai.google.dev/gemini-api/docs/models.
var modelTokenLimits = map[string]int{
	"gemini-1.5-pro":                            2_097_152,
	"gemini-1.5-flash":                          1_048_576,
	"gemini-2.5-pro-preview-05-06":              1_048_576,
	"gemini-2.5-pro-preview-06-05":              1_048_576,
	"gemini-2.5-pro":                            1_048_576,
	"gemini-2.5-flash-preview-05-20":            1_048_576,
	"gemini-2.5-flash":                          1_048_576,
	"gemini-2.0-flash":                          1_048_576,
	"gemini-2.0-flash-preview-image-generation": 32_000,
	"gemini-pro":        1_048_576,
	"gemini-pro-vision": 12_288,
	"embedding-001":     2_048,
	"gemini-embedding-001": 2_048,
}

// TokenLimit returns the context window size for a model id.
func TokenLimit(model string) int {
	if limit, ok := modelTokenLimits[model]; ok {
		return limit
	}
	return DefaultTokenLimit
}
