package cmd

import (
	"github.com/spf13/cobra"
)

func newSessionCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start or end practice sessions",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session on a topic, creating the learner and topic if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.StartSession(cmd.Context(), id, topic)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(start)
	addTopicFlag(start)

	end := &cobra.Command{
		Use:   "end",
		Short: "End every open session and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.EndSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(end)

	cmd.AddCommand(start, end)
	return cmd
}
