// Package history manages conversation history: curation of invalid
// model turns, the model token-limit table, and token-budget-driven
// compression.
package history

import "github.com/lodestone-ai/lodestone/pkg/genai"

// IsValidModelTurn reports whether a model turn would be accepted by
// the API on a subsequent request. Safety filters and recitation
// limits can leave a turn empty or thought-only; such turns must be
// curated out together with the user turn that triggered them.
func IsValidModelTurn(c genai.Content) bool {
	for _, p := range c.Parts {
		switch {
		case p.FunctionCall != nil, p.InlineData != nil:
			return true
		case p.FunctionResponse != nil:
			// Not expected in a model turn, but it is substantive.
			return true
		case !p.Thought && p.Text != "":
			return true
		}
	}
	return false
}

// Curate extracts the valid history from the comprehensive history.
// User and function turns pass through unchanged. Each maximal run of
// consecutive model turns is kept only if every turn in it is valid;
// an invalid run is dropped along with the most recent previously
// emitted user turn. Curate is idempotent.
func Curate(comprehensive []genai.Content) []genai.Content {
	curated := make([]genai.Content, 0, len(comprehensive))

	for i := 0; i < len(comprehensive); {
		turn := comprehensive[i]
		if turn.Role != genai.RoleModel {
			curated = append(curated, turn)
			i++
			continue
		}

		valid := true
		for ; i < len(comprehensive) && comprehensive[i].Role == genai.RoleModel; i++ {
			if valid && !IsValidModelTurn(comprehensive[i]) {
				valid = false
			}
			if valid {
				curated = append(curated, comprehensive[i])
			}
		}
		if !valid {
			curated = dropRunAndTrigger(curated)
		}
	}
	return curated
}

// dropRunAndTrigger removes any model turns appended before the run
// was discovered invalid, then the most recent user turn.
func dropRunAndTrigger(curated []genai.Content) []genai.Content {
	for len(curated) > 0 && curated[len(curated)-1].Role == genai.RoleModel {
		curated = curated[:len(curated)-1]
	}
	for j := len(curated) - 1; j >= 0; j-- {
		if curated[j].Role == genai.RoleUser {
			return append(curated[:j:j], curated[j+1:]...)
		}
	}
	return curated
}
