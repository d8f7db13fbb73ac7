package agent

import (
	"context"
	"encoding/json"

	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// NextSpeaker is the outcome of the continuation check.
type NextSpeaker string

const (
	SpeakerUser    NextSpeaker = "user"
	SpeakerModel   NextSpeaker = "model"
	SpeakerUnknown NextSpeaker = "unknown"
)

// nextSpeakerResponse is the structured classification the model
// returns for the check.
type nextSpeakerResponse struct {
	Reasoning   string `json:"reasoning"`
	NextSpeaker string `json:"next_speaker"`
}

// recentTurnsForCheck bounds the history sent with the check call.
const recentTurnsForCheck = 6

// CheckNextSpeaker decides whether the model should continue without
// user input. Deterministic pre-rules handle the structural cases;
// otherwise the model classifies its own last turn. Any failure of
// the structured call resolves to the user, ending the turn.
func CheckNextSpeaker(ctx context.Context, generator ContentGenerator, model string, comprehensive, curated []genai.Content, logger *observability.Logger) NextSpeaker {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	if len(comprehensive) > 0 {
		last := comprehensive[len(comprehensive)-1]
		if isFunctionResponseTurn(last) {
			return SpeakerModel
		}
		if last.Role == genai.RoleModel && len(last.Parts) == 0 {
			return SpeakerModel
		}
	}

	if len(curated) == 0 || curated[len(curated)-1].Role != genai.RoleModel {
		return SpeakerUnknown
	}

	recent := curated
	if len(recent) > recentTurnsForCheck {
		recent = recent[len(recent)-recentTurnsForCheck:]
	}
	contents := make([]genai.Content, 0, len(recent)+1)
	contents = append(contents, recent...)
	contents = append(contents, genai.Content{
		Role:  genai.RoleUser,
		Parts: []genai.Part{genai.NewTextPart(nextSpeakerPrompt)},
	})

	resp, err := generator.GenerateContent(ctx, GenerateRequest{
		Model:          model,
		Contents:       contents,
		ResponseSchema: nextSpeakerSchema,
	})
	if err != nil {
		logger.Debug(ctx, "next speaker check failed, ending turn", "error", err)
		return SpeakerUser
	}

	var parsed nextSpeakerResponse
	if err := json.Unmarshal([]byte(ResponseText(resp)), &parsed); err != nil {
		logger.Debug(ctx, "next speaker response unparseable, ending turn", "error", err)
		return SpeakerUser
	}

	switch parsed.NextSpeaker {
	case "model":
		return SpeakerModel
	case "user":
		return SpeakerUser
	default:
		return SpeakerUser
	}
}

// isFunctionResponseTurn matches both function-role turns and legacy
// user turns consisting entirely of functionResponse parts.
func isFunctionResponseTurn(c genai.Content) bool {
	if c.Role == genai.RoleFunction {
		return len(c.Parts) > 0
	}
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}
