// Package dispatch runs one tool invocation through validation, the
// approval gate, the optional dry-run preview, execution and logging, and
// shapes the outcome into a response envelope.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prismon/vps-agent/internal/models"
	"github.com/prismon/vps-agent/pkg/focus"
	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/logger"
	"github.com/prismon/vps-agent/pkg/session"
	"github.com/prismon/vps-agent/pkg/tools"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("dispatch")
}

// Error kinds reported in envelopes
const (
	KindToolNotFound     = "ToolNotFound"
	KindValidation       = "ValidationError"
	KindApprovalRequired = "ApprovalRequired"
	KindExecution        = "ExecutionError"
	KindFileNotFound     = "FileNotFound"
	KindPermissionDenied = "PermissionDenied"
	KindTimeout          = "Timeout"
)

// Request is one tool invocation as parsed from the command line
type Request struct {
	Tool        string
	Params      json.RawMessage
	AutoApprove bool
}

// Dispatcher executes requests against a registry
type Dispatcher struct {
	registry *tools.Registry
	config   *home.Config
}

// New creates a dispatcher
func New(registry *tools.Registry, config *home.Config) *Dispatcher {
	if config == nil {
		config = home.DefaultConfig()
	}
	return &Dispatcher{registry: registry, config: config}
}

// Dispatch runs req within sess and returns the envelope to print. The
// returned error is non-nil only when the session log could not be
// written; tool failures are reported inside the envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, req Request) (*models.Envelope, error) {
	raw := req.Params
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}

	resolver, err := focus.FromFocus(sess.Focus())
	if err != nil {
		log.WithError(err).Warn("Recorded project focus is no longer usable, continuing without it")
	}

	entry := log.WithFields(logrus.Fields{
		"tool":      req.Tool,
		"sessionID": sess.ID,
	})

	// Validating
	tool, ok := d.registry.Lookup(req.Tool)
	if !ok {
		entry.Debug("Unknown tool")
		return models.NewError(sess.ID, req.Tool, models.ApprovalNone, KindToolNotFound,
			fmt.Sprintf("Unknown tool: %s", req.Tool),
			map[string]any{"available_tools": d.registry.Names()},
			snapshot(resolver, sess)), nil
	}

	desc := tool.Descriptor()
	tier := string(desc.Tier)
	focusAtCall := resolver.Focus()

	params, err := tools.Validate(desc.Schema, raw)
	if err != nil {
		entry.WithError(err).Debug("Parameter validation failed")
		kind, details := classify(err)
		if logErr := sess.LogToolCall(desc.Name, raw, nil, &models.EntryError{Type: kind, Message: err.Error()}, focusAtCall); logErr != nil {
			return nil, fmt.Errorf("failed to record tool call: %w", logErr)
		}
		return models.NewError(sess.ID, desc.Name, tier, kind, err.Error(), details, snapshot(resolver, sess)), nil
	}

	// Gating
	if desc.Tier == tools.TierExplicit && !req.AutoApprove {
		entry.Info("Denied explicit tool without approval")
		return models.NewError(sess.ID, desc.Name, tier, KindApprovalRequired,
			fmt.Sprintf("Tool '%s' requires explicit approval. Use --auto-approve flag to execute.", desc.Name),
			nil, snapshot(resolver, sess)), nil
	}

	// DryRunPreview
	if params.DryRun() {
		entry.Debug("Dry run")
		return models.NewDryRun(sess.ID, desc.Name, tier, raw, snapshot(resolver, sess)), nil
	}

	// Executing
	env := &tools.Env{Focus: resolver, Session: sess, Config: d.config}
	started := time.Now()
	result, execErr := run(ctx, tool, params, env)
	if execErr == nil {
		result, execErr = normalize(result)
	}
	entry = entry.WithField("duration", time.Since(started))

	// Logging
	var logged *models.EntryError
	var kind string
	var details map[string]any
	if execErr != nil {
		kind, details = classify(execErr)
		logged = &models.EntryError{Type: kind, Message: execErr.Error()}
		entry.WithError(execErr).WithField("kind", kind).Info("Tool failed")
	} else {
		entry.Debug("Tool succeeded")
	}

	if err := sess.LogToolCall(desc.Name, raw, result, logged, focusAtCall); err != nil {
		return nil, fmt.Errorf("failed to record tool call: %w", err)
	}

	// Responding
	if execErr != nil {
		return models.NewError(sess.ID, desc.Name, tier, kind, execErr.Error(), details, snapshot(resolver, sess)), nil
	}
	return models.NewSuccess(sess.ID, desc.Name, tier, result, snapshot(resolver, sess)), nil
}

// run executes the tool and turns a panic into an error
func run(ctx context.Context, tool tools.Tool, params tools.Params, env *tools.Env) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("Tool panicked: %v", r)
			result = nil
			err = &PanicError{Value: r}
		}
	}()
	return tool.Execute(ctx, params, env)
}

// normalize converts a tool result to plain JSON values so the logged and
// returned forms are identical.
func normalize(result any) (any, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("tool result is not JSON-serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("tool result is not JSON-serializable: %w", err)
	}
	return out, nil
}

type kinded interface {
	Kind() string
}

type detailed interface {
	Details() map[string]any
}

// classify maps an error to its envelope kind and details
func classify(err error) (string, map[string]any) {
	var details map[string]any
	var d detailed
	if errors.As(err, &d) {
		details = d.Details()
	}

	var k kinded
	switch {
	case errors.As(err, &k):
		return k.Kind(), details
	case errors.Is(err, os.ErrNotExist):
		return KindFileNotFound, details
	case errors.Is(err, os.ErrPermission):
		return KindPermissionDenied, details
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, details
	}
	return KindExecution, details
}

func snapshot(resolver *focus.Resolver, sess *session.Session) models.ContextInfo {
	return models.NewContext(resolver.Focus(), sess.ID)
}

// PanicError reports a tool that panicked instead of returning an error
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tool panicked: %v", e.Value)
}

// Kind names the error in response envelopes
func (e *PanicError) Kind() string {
	return KindExecution
}
