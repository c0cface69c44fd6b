package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fitverse/pkg/workoutapi"
	"fitverse/pkg/workouts"
)

func newWorkoutsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workouts",
		Aliases: []string{"w"},
		Short:   "List and change your workouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newWorkoutsListCommand(a))
	cmd.AddCommand(newWorkoutsAddCommand(a))
	cmd.AddCommand(newWorkoutsEditCommand(a))
	cmd.AddCommand(newWorkoutsRemoveCommand(a))
	cmd.AddCommand(newWorkoutsToggleCommand(a))
	cmd.AddCommand(newWorkoutsExportCommand(a))
	return cmd
}

// controller builds a workouts.Controller whose notices go to stdout and stderr.
func (a *app) controller(ctx context.Context) *workouts.Controller {
	opts := []workouts.Option{
		workouts.WithLogger(a.logger),
		workouts.WithNotifier(workouts.NotifierFunc(func(_ context.Context, n workouts.Notice) {
			if n.Level == workouts.LevelError {
				fmt.Fprintln(a.io.Err, n.Message)
				return
			}
			fmt.Fprintln(a.io.Out, n.Message)
		})),
	}
	if p := a.publisher(); p != nil {
		// Events carry the user id, which needs one identity lookup.
		a.session.CurrentIdentity(ctx)
		opts = append(opts, workouts.WithPublisher(p))
	}
	return workouts.NewController(a.client, a.session, nil, opts...)
}

// loaded returns a controller with a fresh list, or the error that stopped the fetch.
func (a *app) loaded(ctx context.Context) (*workouts.Controller, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	ctrl := a.controller(ctx)
	if err := ctrl.Refresh(ctx); err != nil {
		return nil, a.commandError(ctx, err)
	}
	return ctrl, nil
}

// commandError turns a controller failure into the command's error. The notice has already
// been printed.
func (a *app) commandError(ctx context.Context, err error) error {
	if workoutapi.IsUnauthenticated(err) {
		return a.expired(ctx)
	}
	return err
}

func newWorkoutsListCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show your workouts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.loaded(cmd.Context())
			if err != nil {
				return err
			}
			items := ctrl.List().All()

			if asJSON {
				enc := json.NewEncoder(a.io.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			if len(items) == 0 {
				a.printf("No workouts yet. Add one with `fitversectl workouts add NAME MINUTES`.\n")
				return nil
			}
			tw := tabwriter.NewWriter(a.io.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDURATION\tSTATUS\tDATE ADDED")
			for _, w := range items {
				added := workoutapi.NotAvailable
				if !w.DateAdded.IsZero() {
					added = w.DateAdded.Format("Jan 2, 2006")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", w.ID, w.Name, w.DurationLabel, w.Status.Label(), added)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

func newWorkoutsAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME MINUTES",
		Short: "Add a workout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			minutes, err := parseMinutes(args[1])
			if err != nil {
				return err
			}
			if err := a.controller(cmd.Context()).Create(cmd.Context(), args[0], minutes); err != nil {
				return a.commandError(cmd.Context(), err)
			}
			return nil
		},
	}
}

func newWorkoutsEditCommand(a *app) *cobra.Command {
	var (
		name    string
		minutes string
	)

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a workout's name or length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.loaded(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := ctrl.List().Lookup(args[0])
			if !ok {
				return fmt.Errorf("workout %s not found", args[0])
			}

			if name == "" {
				name = current.Name
			}
			var n int
			if minutes != "" {
				if n, err = parseMinutes(minutes); err != nil {
					return err
				}
			} else if n, err = workoutapi.ParseDurationMinutes(current.DurationLabel); err != nil {
				return fmt.Errorf("current duration %q has no minute count; pass --minutes", current.DurationLabel)
			}

			if err := ctrl.Update(cmd.Context(), current.ID, name, n); err != nil {
				return a.commandError(cmd.Context(), err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name (unchanged when omitted)")
	cmd.Flags().StringVar(&minutes, "minutes", "", "New length in minutes (unchanged when omitted)")
	return cmd
}

func newWorkoutsRemoveCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a workout after confirmation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.loaded(cmd.Context())
			if err != nil {
				return err
			}

			confirmer := workouts.Confirmed
			if !yes {
				confirmer = workouts.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
					answer, err := a.prompt(prompt + " [y/N]: ")
					if err != nil {
						return false, nil
					}
					answer = strings.ToLower(strings.TrimSpace(answer))
					return answer == "y" || answer == "yes", nil
				})
			}

			err = ctrl.Remove(cmd.Context(), args[0], confirmer)
			if errors.Is(err, workouts.ErrNotConfirmed) {
				a.printf("Aborted.\n")
				return nil
			}
			if err != nil {
				return a.commandError(cmd.Context(), err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func newWorkoutsToggleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a workout between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.loaded(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := ctrl.List().Lookup(args[0])
			if !ok {
				return fmt.Errorf("workout %s not found", args[0])
			}
			if err := ctrl.ToggleStatus(cmd.Context(), current.ID, current.Status); err != nil {
				return a.commandError(cmd.Context(), err)
			}
			return nil
		},
	}
}

func parseMinutes(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("minutes must be a positive whole number, got %q", v)
	}
	return n, nil
}
