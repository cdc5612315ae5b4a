package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutord/internal/ui/report"
)

func newProfileCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print a learner's full stored profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			p, err := get().svc.Profile(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	addLearnerFlag(cmd)
	return cmd
}

func newEventsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print a learner's audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			events, err := get().svc.Events(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), events)
		},
	}
	addLearnerFlag(cmd)
	cmd.Flags().Int("limit", 20, "Maximum number of events (0 for all)")
	return cmd
}

func newLearnersCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "learners",
		Short: "List stored learner IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := get().svc.Learners(cmd.Context())
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"learners": ids})
		},
	}
}

func newReportCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show a learner's mastery report",
		Long:  "Renders per-topic mastery bars and recent sessions. Unlike the other commands this prints text, not JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			a := get()
			p, err := a.svc.Profile(cmd.Context(), id)
			if err != nil {
				return err
			}
			color, _ := cmd.Flags().GetBool("color")
			width, _ := cmd.Flags().GetInt("width")
			sessions, _ := cmd.Flags().GetInt("sessions")
			fmt.Fprintln(cmd.OutOrStdout(), report.Render(p, a.svc.Policy(), report.Options{
				Width:          width,
				Color:          color,
				RecentSessions: sessions,
			}))
			return nil
		},
	}
	addLearnerFlag(cmd)
	cmd.Flags().Bool("color", false, "Keep ANSI colors")
	cmd.Flags().Int("width", 60, "Width of the mastery bars")
	cmd.Flags().Int("sessions", 5, "How many recent sessions to list")
	return cmd
}
