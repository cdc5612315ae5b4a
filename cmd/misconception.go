package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newMisconceptionCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "misconception",
		Aliases: []string{"mc"},
		Short:   "Track misconceptions on a topic",
	}

	add := &cobra.Command{
		Use:   "add DESCRIPTION...",
		Short: "Record an observed misconception",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.RecordMisconception(cmd.Context(), id, topic, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve DESCRIPTION...",
		Short: "Mark a misconception as resolved",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.ResolveMisconception(cmd.Context(), id, topic, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	for _, c := range []*cobra.Command{add, resolve} {
		addLearnerFlag(c)
		addTopicFlag(c)
	}
	cmd.AddCommand(add, resolve)
	return cmd
}
