package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/watchlist/internal/view"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

func (a *app) newListCmd() *cobra.Command {
	var genre, sortFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, optionally filtered by genre and sorted by rating",
		Example: `  watchlist list
  watchlist list --genre Family --sort highest
  watchlist list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := view.ParseSortOrder(sortFlag)
			if err != nil {
				return err
			}
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			recs := w.ListView(genre, order)
			if a.jsonOut {
				return a.printJSON(recs)
			}
			a.printTable(recs)
			return nil
		},
	}
	cmd.Flags().StringVar(&genre, "genre", "", "show only this genre (exact match)")
	cmd.Flags().StringVar(&sortFlag, "sort", "default", "rating order: default, highest, lowest")
	return cmd
}

func (a *app) newAddCmd() *cobra.Command {
	var title, genre, review, rating string
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a record",
		Example: `  watchlist add --title Up --genre Family --rating 5 --review "sweet"`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			rec, err := w.AddRecord(cmd.Context(), title, genre, review, rating)
			if err != nil {
				return err
			}
			return a.printRecord(rec)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "movie title (required)")
	cmd.Flags().StringVar(&genre, "genre", "", "genre (default "+types.DefaultGenre+")")
	cmd.Flags().StringVar(&review, "review", "", "free-text review")
	cmd.Flags().StringVar(&rating, "rating", "", "rating 0-5")
	return cmd
}

func (a *app) newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the watched flag of a record",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			rec, err := w.ToggleWatched(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printRecord(rec)
		},
	}
}

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a record",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.RemoveRecord(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]string{"removed": args[0]})
			}
			fmt.Fprintln(a.out, "removed", args[0])
			return nil
		},
	}
}

func (a *app) newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <field=value>...",
		Short: "Update fields of a record",
		Long: `set applies a partial update. Fields: title, genre, review, watched, rating.
title, genre and review take the value as text; watched and rating are
parsed as JSON (true/false, numbers).`,
		Example: `  watchlist set 0191... rating=4 review="better the second time"
  watchlist set 0191... watched=true`,
		Args: minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			rec, err := w.UpdateRecord(cmd.Context(), args[0], changes)
			if err != nil {
				return err
			}
			return a.printRecord(rec)
		},
	}
}

func (a *app) newGenresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the genres present in the watchlist",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			genres := w.Genres()
			if a.jsonOut {
				return a.printJSON(genres)
			}
			for _, g := range genres {
				fmt.Fprintln(a.out, g)
			}
			return nil
		},
	}
}

// parseAssignments turns field=value arguments into a change set.
func parseAssignments(args []string) (types.Changes, error) {
	changes := make(types.Changes, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid assignment %q (expected field=value)", errUsage, arg)
		}
		field := types.Field(key)
		switch field {
		case types.FieldTitle, types.FieldGenre, types.FieldReview, types.FieldID:
			changes[field] = value
		default:
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				parsed = value
			}
			changes[field] = parsed
		}
	}
	return changes, nil
}

func (a *app) printRecord(rec types.Record) error {
	if a.jsonOut {
		return a.printJSON(rec)
	}
	a.printTable([]types.Record{rec})
	return nil
}

func (a *app) printTable(recs []types.Record) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tGENRE\tRATING\tWATCHED\tREVIEW")
	for _, r := range recs {
		watched := "no"
		if r.Watched {
			watched = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n", r.ID, r.Title, r.Genre, r.Rating, types.MaxRating, watched, r.Review)
	}
	tw.Flush()
}
