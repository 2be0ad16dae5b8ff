package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftguard/internal/model"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Force bool

	// Now allows overriding the clock (for testing).
	Now func() time.Time
}

// SeedResult reports what the seed command did.
type SeedResult struct {
	Key       string `json:"key"`
	Created   bool   `json:"created"`
	Replaced  bool   `json:"replaced"`
	Workers   int    `json:"workers"`
	Timestamp int64  `json:"lastUpdated,omitempty"`
}

// String renders the result for text output.
func (r SeedResult) String() string {
	switch {
	case r.Created:
		return fmt.Sprintf("✓ Created %q with %d workers", r.Key, r.Workers)
	case r.Replaced:
		return fmt.Sprintf("✓ Replaced %q with the default document (%d workers)", r.Key, r.Workers)
	}
	return fmt.Sprintf("Document %q already exists; left unchanged (use --force to replace)", r.Key)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the remote document from defaults when absent",
		Long: `Create the shared attendance document in the remote store from the
default roster, team names and an active bridge. An existing document is left
alone unless --force is given, which replaces it (all logs and users are lost).

Examples:
  shiftguard seed
  shiftguard seed --force --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an existing document")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

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

	_, found, err := store.Fetch(ctx)
	if err != nil {
		return formatter.Fail(ErrCodeRemote, "failed to fetch remote document", err)
	}

	result := SeedResult{Key: cfg.Remote.Key}
	if found && !opts.Force {
		return formatter.Success(result)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	doc := model.DefaultDocument(now().UnixMilli())
	result.Workers = len(doc.Workers)
	result.Timestamp = doc.LastUpdated

	if found {
		formatter.VerboseLog("replacing %s/%s", cfg.Remote.Table, cfg.Remote.Key)
		matched, err := store.Update(ctx, doc)
		if err == nil && !matched {
			err = fmt.Errorf("document disappeared during update")
		}
		if err != nil {
			return formatter.Fail(ErrCodeRemote, "failed to replace remote document", err)
		}
		result.Replaced = true
		return formatter.Success(result)
	}

	formatter.VerboseLog("creating %s/%s", cfg.Remote.Table, cfg.Remote.Key)
	if err := store.Create(ctx, doc); err != nil {
		return formatter.Fail(ErrCodeRemote, "failed to create remote document", err)
	}
	result.Created = true
	return formatter.Success(result)
}
