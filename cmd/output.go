package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
)

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// learnerFlag reads and validates --learner.
func learnerFlag(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("learner")
	return learner.ValidateLearnerID(id)
}

// topicFlag reads --topic. Canonicalization happens in the service.
func topicFlag(cmd *cobra.Command) (string, error) {
	t, _ := cmd.Flags().GetString("topic")
	if t == "" {
		return "", errs.InvalidInput("--topic is required")
	}
	return t, nil
}

func addLearnerFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("learner", "l", "", "Learner ID")
}

func addTopicFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("topic", "t", "", "Topic name")
}

// minArgs is cobra.MinimumNArgs reporting an invalid-input error.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return errs.InvalidInput("%s requires at least %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
