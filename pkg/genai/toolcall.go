package genai

// ToolCallRequest is a single tool invocation requested by the model
// (or, for client-initiated tools, by the front-end).
type ToolCallRequest struct {
	CallID          string         `json:"callId"`
	Name            string         `json:"name"`
	Args            map[string]any `json:"args"`
	ClientInitiated bool           `json:"clientInitiated,omitempty"`
}

// ToolCallResponse is the terminal outcome of a tool call.
type ToolCallResponse struct {
	CallID        string `json:"callId"`
	ResponseParts []Part `json:"responseParts,omitempty"`
	DisplayResult string `json:"resultDisplay,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ConfirmationKind classifies what a confirmation dialog shows.
type ConfirmationKind string

const (
	ConfirmEdit ConfirmationKind = "edit"
	ConfirmExec ConfirmationKind = "exec"
	ConfirmMCP  ConfirmationKind = "mcp"
	ConfirmInfo ConfirmationKind = "info"
)

// ConfirmationDetails describes an approval request to the front-end.
// Kind selects which display fields are meaningful.
type ConfirmationDetails struct {
	Kind  ConfirmationKind `json:"type"`
	Title string           `json:"title"`

	// edit
	FileName string `json:"fileName,omitempty"`
	FileDiff string `json:"fileDiff,omitempty"`

	// exec
	Command     string `json:"command,omitempty"`
	RootCommand string `json:"rootCommand,omitempty"`

	// mcp
	ServerName string `json:"serverName,omitempty"`
	ToolName   string `json:"toolName,omitempty"`

	// info
	Prompt string   `json:"prompt,omitempty"`
	URLs   []string `json:"urls,omitempty"`
}

// ConfirmationOutcome is the user's decision on an approval request.
type ConfirmationOutcome string

const (
	OutcomeApprove ConfirmationOutcome = "approve"
	// OutcomeApproveAlwaysServer approves and trusts every tool on the
	// call's server for the rest of the session.
	OutcomeApproveAlwaysServer ConfirmationOutcome = "approve_always_server"
	// OutcomeApproveAlwaysTool approves and trusts this specific tool
	// for the rest of the session.
	OutcomeApproveAlwaysTool ConfirmationOutcome = "approve_always_tool"
	// OutcomeModifyWithEditor approves with args the user edited.
	OutcomeModifyWithEditor ConfirmationOutcome = "modify_with_editor"
	OutcomeCancel           ConfirmationOutcome = "cancel"
)

// IsApproval reports whether the outcome lets the call proceed.
func (o ConfirmationOutcome) IsApproval() bool {
	switch o {
	case OutcomeApprove, OutcomeApproveAlwaysServer, OutcomeApproveAlwaysTool, OutcomeModifyWithEditor:
		return true
	}
	return false
}

// ApprovalMode controls which tool calls require user confirmation.
type ApprovalMode string

const (
	// ApprovalDefault confirms every tool that asks for confirmation.
	ApprovalDefault ApprovalMode = "default"
	// ApprovalAutoEdit skips confirmation for edit-category tools only.
	ApprovalAutoEdit ApprovalMode = "auto_edit"
	// ApprovalYolo skips all confirmations.
	ApprovalYolo ApprovalMode = "yolo"
)
