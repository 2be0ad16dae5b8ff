package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftguard/internal/config"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/remote"
)

// TeamSummary counts one team's workers.
type TeamSummary struct {
	Team    model.Team `json:"team"`
	Name    string     `json:"name"`
	Workers int        `json:"workers"`
	Away    int        `json:"away"`
}

// DocumentSummary describes a fetched remote document.
type DocumentSummary struct {
	Found        bool          `json:"found"`
	Backend      string        `json:"backend"`
	Key          string        `json:"key"`
	Workers      int           `json:"workers"`
	Away         int           `json:"away"`
	Logs         int           `json:"logs"`
	Users        int           `json:"users"`
	LoginLogs    int           `json:"loginLogs"`
	BridgeActive bool          `json:"bridgeActive"`
	LastUpdated  int64         `json:"lastUpdated"`
	Teams        []TeamSummary `json:"teams,omitempty"`
}

// String renders the summary for text output.
func (s DocumentSummary) String() string {
	if !s.Found {
		return fmt.Sprintf("No document %q in %s remote.", s.Key, s.Backend)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document %q (%s)\n", s.Key, s.Backend)
	fmt.Fprintf(&b, "  Last updated: %s\n", time.UnixMilli(s.LastUpdated).UTC().Format(time.RFC3339))
	bridge := "active"
	if !s.BridgeActive {
		bridge = "suspended"
	}
	fmt.Fprintf(&b, "  Bridge: %s\n", bridge)
	fmt.Fprintf(&b, "  Workers: %d (%d away)\n", s.Workers, s.Away)
	for _, t := range s.Teams {
		fmt.Fprintf(&b, "    %s %-20s %3d (%d away)\n", t.Team, t.Name, t.Workers, t.Away)
	}
	fmt.Fprintf(&b, "  Absence logs: %d\n", s.Logs)
	fmt.Fprintf(&b, "  Users: %d, logins: %d", s.Users, s.LoginLogs)
	return b.String()
}

// Summarize counts a document's contents.
func Summarize(doc model.Document) DocumentSummary {
	s := DocumentSummary{
		Found:        true,
		Workers:      len(doc.Workers),
		Logs:         len(doc.Logs),
		Users:        len(doc.RegisteredUsers),
		LoginLogs:    len(doc.LoginLogs),
		BridgeActive: doc.BridgeActive,
		LastUpdated:  doc.LastUpdated,
	}

	byTeam := make(map[model.Team]*TeamSummary, len(model.Teams))
	for _, team := range model.Teams {
		ts := &TeamSummary{Team: team, Name: doc.TeamName(team)}
		byTeam[team] = ts
	}
	for _, w := range doc.Workers {
		away := w.Status == model.StatusAway
		if away {
			s.Away++
		}
		if ts, ok := byTeam[w.Team]; ok {
			ts.Workers++
			if away {
				ts.Away++
			}
		}
	}
	for _, team := range model.Teams {
		s.Teams = append(s.Teams, *byTeam[team])
	}
	return s
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch the remote document once and print a summary",
		Long: `Fetch the shared attendance document from the configured remote store
and print what it holds. Nothing is written locally or remotely.

Exit codes:
  0 - Document fetched (or confirmed absent)
  1 - Remote store error
  2 - Invalid configuration`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(rootOpts, cmd)
		},
	}
	return cmd
}

func runPull(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(formatter)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	store, closeStore, err := openStore(ctx, cfg, formatter)
	if err != nil {
		return err
	}
	defer closeStore()

	formatter.VerboseLog("fetching %s/%s from %s remote", cfg.Remote.Table, cfg.Remote.Key, cfg.Remote.Backend)
	doc, found, err := store.Fetch(ctx)
	if err != nil {
		return formatter.Fail(ErrCodeRemote, "failed to fetch remote document", err)
	}

	summary := DocumentSummary{}
	if found {
		summary = Summarize(doc)
	}
	summary.Backend = string(cfg.Remote.Backend)
	summary.Key = cfg.Remote.Key
	return formatter.Success(summary)
}

// openStore opens the configured backend, reporting failures through the
// formatter. The returned close function is never nil.
func openStore(ctx context.Context, cfg config.Config, formatter *OutputFormatter) (remote.Store, func(), error) {
	store, closeFn, err := remote.Open(ctx, cfg.Remote)
	if err != nil {
		return nil, func() {}, formatter.Fail(ErrCodeConfig, "failed to open remote store", err)
	}
	return store, func() {
		if closeErr := closeFn(); closeErr != nil {
			formatter.VerboseLog("error closing remote store: %v", closeErr)
		}
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
