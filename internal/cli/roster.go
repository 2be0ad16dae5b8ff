package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftguard/internal/model"
)

// RosterOptions holds flags for the roster command.
type RosterOptions struct {
	*RootOptions
	Team string
}

// RosterListing is the default roster, optionally limited to one team.
type RosterListing struct {
	Workers []model.Worker `json:"workers"`
}

// String renders the listing as an aligned table.
func (l RosterListing) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPC\tNAME\tTEAM")
	for _, w := range l.Workers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.ID, w.PCNumber, w.Name, w.Team)
	}
	_ = tw.Flush()
	fmt.Fprintf(&b, "%d workers", len(l.Workers))
	return b.String()
}

// NewRosterCommand creates the roster command.
func NewRosterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RosterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print the default roster",
		Long: `Print the built-in roster a fresh document is seeded with.

Examples:
  shiftguard roster
  shiftguard roster --team B --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoster(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Team, "team", "", "only list this team (A-D)")

	return cmd
}

func runRoster(opts *RosterOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	team := model.Team(strings.ToUpper(strings.TrimSpace(opts.Team)))
	if team != "" && !team.Valid() {
		return formatter.Fail(ErrCodeNotFound, fmt.Sprintf("unknown team %q: must be one of %v", opts.Team, model.Teams), nil)
	}

	listing := RosterListing{Workers: []model.Worker{}}
	for _, w := range model.DefaultRoster() {
		if team == "" || w.Team == team {
			listing.Workers = append(listing.Workers, w)
		}
	}
	return formatter.Success(listing)
}
