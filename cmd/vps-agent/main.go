package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prismon/vps-agent/internal/models"
	"github.com/prismon/vps-agent/pkg/builtin"
	"github.com/prismon/vps-agent/pkg/dispatch"
	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/logger"
	"github.com/prismon/vps-agent/pkg/session"
	"github.com/prismon/vps-agent/pkg/tools"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("cli")
}

const (
	exitOK    = 0
	exitError = 1

	kindUsage           = "UsageError"
	kindMissingArgument = "MissingArgument"
	kindInvalidJSON     = "InvalidJSON"
	kindInternal        = "InternalError"
)

// options holds the parsed command line
type options struct {
	tool        string
	params      string
	resume      string
	homeDir     string
	logLevel    string
	continueRun bool
	autoApprove bool

	listTools      bool
	listSessions   bool
	includeExpired bool
	cleanup        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// execute runs one invocation and returns the process exit code. Exactly one
// envelope is written to stdout.
func execute(ctx context.Context, args []string, stdout io.Writer) int {
	opts := &options{}
	code := exitOK

	rootCmd := &cobra.Command{
		Use:   "vps-agent",
		Short: "Headless tool execution engine for remote operation of a VPS",
		Long: `vps-agent - Run one tool per invocation and print a JSON envelope.

Each invocation validates the tool's parameters, applies its approval tier,
runs it and appends the attempt to a session log. Sessions carry the project
focus across invocations (--continue, --resume).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = run(cmd.Context(), opts, stdout)
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.tool, "tool", "", "Name of the tool to run")
	flags.StringVar(&opts.params, "params", "{}", "Tool parameters as a JSON object")
	flags.BoolVar(&opts.continueRun, "continue", false, "Continue the most recent live session")
	flags.StringVar(&opts.resume, "resume", "", "Resume the session with this id")
	flags.BoolVar(&opts.autoApprove, "auto-approve", false, "Allow tools that require explicit approval")
	flags.BoolVar(&opts.listTools, "list-tools", false, "List available tools and their schemas")
	flags.BoolVar(&opts.listSessions, "list-sessions", false, "List live sessions")
	flags.BoolVar(&opts.includeExpired, "include-expired", false, "Include expired sessions in --list-sessions")
	flags.BoolVar(&opts.cleanup, "cleanup-sessions", false, "Delete expired session logs")
	flags.StringVar(&opts.homeDir, "home", "", "Agent home directory (default $VPS_AGENT_HOME or ~/.vps-agent)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.SetArgs(args)
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetErr(os.Stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		emit(stdout, models.NewUsageError(opts.tool, kindUsage, err.Error()))
		return exitError
	}
	return code
}

func run(ctx context.Context, opts *options, stdout io.Writer) int {
	if !opts.listTools && !opts.listSessions && !opts.cleanup {
		if opts.tool == "" {
			emit(stdout, models.NewUsageError("", kindMissingArgument,
				"--tool is required. Use --list-tools to see available tools."))
			return exitError
		}
		if !json.Valid([]byte(opts.params)) {
			var decoded any
			err := json.Unmarshal([]byte(opts.params), &decoded)
			emit(stdout, models.NewUsageError(opts.tool, kindInvalidJSON,
				fmt.Sprintf("Invalid JSON in --params: %v", err)))
			return exitError
		}
	}

	mgr, cfg, closer, err := setup(opts)
	if err != nil {
		return fault(stdout, opts.tool, "", err)
	}
	defer closer.Close()

	registry, err := builtin.NewRegistry(cfg)
	if err != nil {
		return fault(stdout, opts.tool, "", err)
	}

	store := session.NewStore(mgr.SessionsPath(),
		session.WithTTL(cfg.Sessions.TTL()),
		session.WithIDFormat(cfg.Sessions.IDPrefix, cfg.Sessions.IDLength),
	)

	switch {
	case opts.listTools:
		return listTools(stdout, registry)
	case opts.listSessions:
		return listSessions(stdout, store, opts.includeExpired)
	case opts.cleanup:
		return cleanupSessions(stdout, store)
	}

	sess, err := store.Resolve(opts.resume, opts.continueRun)
	if err != nil {
		return fault(stdout, opts.tool, "", err)
	}

	log.WithFields(logrus.Fields{
		"tool":      opts.tool,
		"sessionID": sess.ID,
		"origin":    sess.Origin,
	}).Info("Executing tool")

	envelope, err := dispatch.New(registry, cfg).Dispatch(ctx, sess, dispatch.Request{
		Tool:        opts.tool,
		Params:      json.RawMessage(opts.params),
		AutoApprove: opts.autoApprove,
	})
	if err != nil {
		return fault(stdout, opts.tool, sess.ID, err)
	}

	emit(stdout, envelope)
	return exitOK
}

// setup prepares the home directory, loads config and configures logging
func setup(opts *options) (*home.Manager, *home.Config, io.Closer, error) {
	homePath := opts.homeDir
	if homePath == "" {
		homePath = home.DefaultHomePath()
	}

	mgr, err := home.NewManager(homePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create home manager: %w", err)
	}
	if err := mgr.Initialize(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize home directory: %w", err)
	}

	cfg, err := mgr.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	level := opts.logLevel
	if level == "" && os.Getenv("LOG_LEVEL") == "" {
		level = cfg.Logging.Level
	}
	if level != "" {
		if err := logger.ConfigureFromString(level); err != nil {
			return nil, nil, nil, err
		}
	}

	var logFile string
	if cfg.Logging.File != "" && level != "silent" {
		logFile = mgr.ResolvePath(cfg.Logging.File)
	}
	closer, err := logger.ConfigureOutput(logFile)
	if err != nil {
		return nil, nil, nil, err
	}

	return mgr, cfg, closer, nil
}

func listTools(stdout io.Writer, registry *tools.Registry) int {
	descriptors := registry.List()
	infos := make([]tools.Info, 0, len(descriptors))
	for _, d := range descriptors {
		infos = append(infos, d.Info())
	}

	emit(stdout, models.NewSuccess(models.SessionNone, "list_tools", models.ApprovalNone, map[string]any{
		"count": len(infos),
		"tools": infos,
	}, models.ContextInfo{}))
	return exitOK
}

func listSessions(stdout io.Writer, store *session.Store, includeExpired bool) int {
	summaries, err := store.List(includeExpired)
	if err != nil {
		return fault(stdout, "list_sessions", "", err)
	}

	emit(stdout, models.NewSuccess(models.SessionNone, "list_sessions", models.ApprovalNone, map[string]any{
		"count":    len(summaries),
		"sessions": summaries,
	}, models.ContextInfo{}))
	return exitOK
}

func cleanupSessions(stdout io.Writer, store *session.Store) int {
	deleted, err := store.CleanupExpired()
	if err != nil {
		log.WithError(err).WithField("deleted", deleted).Error("Session cleanup incomplete")
		return fault(stdout, "cleanup_sessions", "", err)
	}

	emit(stdout, models.NewSuccess(models.SessionNone, "cleanup_sessions", models.ApprovalNone, map[string]any{
		"deleted": deleted,
	}, models.ContextInfo{}))
	return exitOK
}

// fault reports a top-level failure: something other than the tool went wrong
func fault(stdout io.Writer, tool, sessionID string, err error) int {
	log.WithError(err).Error("Invocation failed")

	if tool == "" {
		tool = "agent"
	}
	ctx := models.NewContext("", sessionID)
	if sessionID == "" {
		sessionID = models.SessionNone
	}
	emit(stdout, models.NewError(sessionID, tool, models.ApprovalNone, kindInternal, err.Error(), nil, ctx))
	return exitError
}

func emit(stdout io.Writer, envelope *models.Envelope) {
	data, err := envelope.JSON()
	if err != nil {
		log.WithError(err).Error("Failed to encode envelope")
		fmt.Fprintf(stdout, `{"success": false, "error": {"type": %q, "message": %q}}`+"\n", kindInternal, err.Error())
		return
	}
	fmt.Fprintln(stdout, string(data))
}
