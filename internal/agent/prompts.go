package agent

import (
	"fmt"
	"os"
	"strings"
)

// nextSpeakerPrompt asks the model to classify its own last turn.
const nextSpeakerPrompt = `Based on the conversation so far, determine who should speak next.

If the model's last response appears incomplete, or if the model explicitly indicated it will continue, or if the task is not yet complete, respond with "model".

If the model's last response appears complete and it's the user's turn to provide input, respond with "user".

Consider:
- Did the model finish its thought?
- Did the model complete the requested task?
- Is the model waiting for user input?
- Did the model indicate it will continue?`

// nextSpeakerSchema constrains the classification response.
var nextSpeakerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reasoning": map[string]any{
			"type":        "string",
			"description": "Brief explanation of the decision",
		},
		"next_speaker": map[string]any{
			"type":        "string",
			"enum":        []any{"user", "model"},
			"description": "Who should speak next",
		},
	},
	"required": []any{"reasoning", "next_speaker"},
}

// compressionPrompt is appended as a final user turn when the history
// must be summarized into a single turn.
const compressionPrompt = `Please create a dense, faithful summary of the entire conversation so far. The summary must preserve everything needed to continue the conversation without loss:
1. The overall goal the user is pursuing
2. Key knowledge, decisions, and outcomes established so far
3. Relevant file system state and artifacts that were created or modified
4. The most recent actions taken and their results
5. The current plan and any outstanding next steps

Format the summary as XML:
<summary>
  <overall_goal>...</overall_goal>
  <key_knowledge>
    <item>...</item>
  </key_knowledge>
  <file_system_state>
    <item>...</item>
  </file_system_state>
  <recent_actions>
    <item>...</item>
  </recent_actions>
  <current_plan>...</current_plan>
</summary>

Respond with the summary only.`

// continuePrompt is injected as synthetic user input when the
// next-speaker check decides the model should keep going.
const continuePrompt = "Please continue."

// baseSystemPrompt grounds the assistant's behavior. User memory and
// context files are appended per turn so edits between turns take
// effect.
const baseSystemPrompt = `You are an interactive command-line assistant. You help the user with software engineering and system tasks by conversing, reasoning, and calling the tools made available to you.

Guidelines:
- Prefer calling a tool over guessing about the state of the local machine.
- Keep responses concise and suitable for a terminal.
- When a task needs several steps, proceed step by step and report progress.
- Never fabricate tool output or file contents.`

// memorySeparator joins the base prompt with appended user memory.
const memorySeparator = "\n\n---\n\n"

// BuildSystemInstruction assembles the per-turn system instruction
// from the base prompt, the user-memory blob, and any context files.
// Files are re-read on every call so updates between turns apply.
func BuildSystemInstruction(userMemory string, contextFiles []string) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)

	if userMemory = strings.TrimSpace(userMemory); userMemory != "" {
		b.WriteString(memorySeparator)
		b.WriteString(userMemory)
	}

	for _, path := range contextFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		b.WriteString(memorySeparator)
		fmt.Fprintf(&b, "Context from %s:\n%s", path, content)
	}
	return b.String()
}
