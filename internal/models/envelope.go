package models

import (
	"encoding/json"
	"time"
)

// ApprovalNone marks envelopes produced outside any tool context
const ApprovalNone = "none"

// SessionNone is the session id reported before a session exists
const SessionNone = "none"

// Envelope is the single JSON object written to stdout per invocation.
// Exactly one of Result or Error is meaningful, selected by Success.
type Envelope struct {
	Success       bool         `json:"success"`
	SessionID     string       `json:"session_id"`
	Tool          string       `json:"tool"`
	ApprovalLevel string       `json:"approval_level"`
	DryRun        bool         `json:"dry_run"`
	Result        any          `json:"result"`
	Context       ContextInfo  `json:"context"`
	Error         *ErrorDetail `json:"error"`
	Timestamp     string       `json:"timestamp"`
}

// ContextInfo is the execution context snapshot carried by an envelope
type ContextInfo struct {
	Project    *string        `json:"project"`
	SessionID  *string        `json:"session_id"`
	Additional map[string]any `json:"additional"`
}

// ErrorDetail is the structured failure of an envelope
type ErrorDetail struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Tool    *string        `json:"tool"`
	Details map[string]any `json:"details"`
}

// NewContext builds a context snapshot. Empty strings become JSON null.
func NewContext(project, sessionID string) ContextInfo {
	return ContextInfo{
		Project:    stringOrNil(project),
		SessionID:  stringOrNil(sessionID),
		Additional: map[string]any{},
	}
}

// NewSuccess builds a successful envelope
func NewSuccess(sessionID, tool, approvalLevel string, result any, ctx ContextInfo) *Envelope {
	return &Envelope{
		Success:       true,
		SessionID:     sessionID,
		Tool:          tool,
		ApprovalLevel: approvalLevel,
		Result:        result,
		Context:       normalizeContext(ctx),
		Timestamp:     Timestamp(time.Now()),
	}
}

// NewDryRun builds the preview envelope for a dry_run invocation
func NewDryRun(sessionID, tool, approvalLevel string, params json.RawMessage, ctx ContextInfo) *Envelope {
	env := NewSuccess(sessionID, tool, approvalLevel, map[string]any{
		"dry_run":        true,
		"would_execute":  tool,
		"params":         params,
		"approval_level": approvalLevel,
	}, ctx)
	env.DryRun = true
	return env
}

// NewError builds a failed envelope
func NewError(sessionID, tool, approvalLevel, errType, message string, details map[string]any, ctx ContextInfo) *Envelope {
	if details == nil {
		details = map[string]any{}
	}
	return &Envelope{
		Success:       false,
		SessionID:     sessionID,
		Tool:          tool,
		ApprovalLevel: approvalLevel,
		Context:       normalizeContext(ctx),
		Error: &ErrorDetail{
			Type:    errType,
			Message: message,
			Tool:    stringOrNil(tool),
			Details: details,
		},
		Timestamp: Timestamp(time.Now()),
	}
}

// NewUsageError builds the envelope for failures before any session exists
func NewUsageError(tool, errType, message string) *Envelope {
	if tool == "" {
		tool = "agent"
	}
	return NewError(SessionNone, tool, ApprovalNone, errType, message, nil, ContextInfo{})
}

// JSON renders the envelope with two-space indentation
func (e *Envelope) JSON() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

func normalizeContext(ctx ContextInfo) ContextInfo {
	if ctx.Additional == nil {
		ctx.Additional = map[string]any{}
	}
	return ctx
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
