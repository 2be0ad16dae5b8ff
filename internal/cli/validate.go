package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftguard/internal/config"
	"github.com/roach88/shiftguard/internal/remote"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	CheckRemote bool
}

// ConfigReport is the effective configuration with secrets masked.
type ConfigReport struct {
	Valid        bool   `json:"valid"`
	Env          string `json:"env"`
	Backend      string `json:"backend"`
	Table        string `json:"table"`
	Key          string `json:"key"`
	Target       string `json:"target"`
	PollInterval string `json:"pollInterval"`
	PushDebounce string `json:"pushDebounce"`
	HTTPAddr     string `json:"httpAddr"`
	SessionTTL   string `json:"sessionTTL"`
	Timezone     string `json:"timezone"`
	OwnerCodeSet bool   `json:"ownerCodeSet"`
	AdminCodeSet bool   `json:"adminCodeSet"`
	RemoteFound  *bool  `json:"remoteFound,omitempty"`
}

// String renders the report for text output.
func (r ConfigReport) String() string {
	var b strings.Builder
	fmt.Fprintln(&b, "✓ Configuration valid")
	fmt.Fprintf(&b, "  Environment: %s\n", r.Env)
	fmt.Fprintf(&b, "  Remote: %s %s (%s/%s)\n", r.Backend, r.Target, r.Table, r.Key)
	fmt.Fprintf(&b, "  Poll every %s, push debounce %s\n", r.PollInterval, r.PushDebounce)
	fmt.Fprintf(&b, "  Console: %s, sessions %s, timezone %s\n", r.HTTPAddr, r.SessionTTL, r.Timezone)
	fmt.Fprintf(&b, "  Access codes: owner %s, admin %s", setOrMissing(r.OwnerCodeSet), setOrMissing(r.AdminCodeSet))
	if r.RemoteFound != nil {
		if *r.RemoteFound {
			fmt.Fprint(&b, "\n  Remote reachable, document present")
		} else {
			fmt.Fprint(&b, "\n  Remote reachable, document absent (run seed or start the client)")
		}
	}
	return b.String()
}

func setOrMissing(set bool) string {
	if set {
		return "set"
	}
	return "missing"
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without starting the client",
		Long: `Load configuration from the environment (and the env file, if any),
validate it against the schema and print the effective settings with secrets
masked. With --check-remote the remote store is also contacted once.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.CheckRemote, "check-remote", false, "also fetch the remote document")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			_ = formatter.Error(ErrCodeConfig, "invalid configuration", strings.Split(strings.TrimSpace(cfgErr.Details), "\n"))
			return WrapExitError(ExitCodeFor(ErrCodeConfig), "invalid configuration", err)
		}
		return formatter.Fail(ErrCodeConfig, "invalid configuration", err)
	}

	report := ConfigReport{
		Valid:        true,
		Env:          cfg.Env,
		Backend:      string(cfg.Remote.Backend),
		Table:        cfg.Remote.Table,
		Key:          cfg.Remote.Key,
		Target:       remoteTarget(cfg),
		PollInterval: cfg.PollInterval.String(),
		PushDebounce: cfg.PushDebounce.String(),
		HTTPAddr:     cfg.HTTPAddr,
		SessionTTL:   cfg.SessionTTL.String(),
		Timezone:     cfg.Timezone,
		OwnerCodeSet: cfg.OwnerAccessCode != "",
		AdminCodeSet: cfg.AdminAccessCode != "",
	}

	if opts.CheckRemote {
		ctx := commandContext(cmd)
		store, closeStore, err := openStore(ctx, cfg, formatter)
		if err != nil {
			return err
		}
		defer closeStore()

		if hc, ok := store.(remote.HealthChecker); ok {
			formatter.VerboseLog("pinging %s remote", cfg.Remote.Backend)
			if !hc.Healthy(ctx) {
				return formatter.Fail(ErrCodeRemote, "remote store unreachable",
					fmt.Errorf("%s at %s did not answer a ping", cfg.Remote.Backend, remoteTarget(cfg)))
			}
		}

		formatter.VerboseLog("contacting %s remote", cfg.Remote.Backend)
		_, found, err := store.Fetch(ctx)
		if err != nil {
			return formatter.Fail(ErrCodeRemote, "remote store unreachable", err)
		}
		report.RemoteFound = &found
	}

	return formatter.Success(report)
}

// remoteTarget describes where the backend points, without credentials.
func remoteTarget(cfg config.Config) string {
	r := cfg.Remote
	switch r.Backend {
	case remote.BackendHTTP, "":
		return redactURL(r.URL)
	case remote.BackendRedis:
		return r.RedisAddr
	case remote.BackendSQLite:
		return r.SQLitePath
	case remote.BackendPostgres:
		return redactURL(r.DatabaseURL)
	case remote.BackendFirestore:
		return "project " + r.FirestoreProject
	}
	return "in-process"
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	return u.Redacted()
}
