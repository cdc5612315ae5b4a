package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/tutord/internal/session"
)

func newAttemptCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempt",
		Short: "Record an answered question",
		Example: "  tutord attempt -l ada -t fractions --correct --bloom apply\n" +
			"  tutord attempt -l ada -t fractions --error-type computational --error-step \"carry\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			var in session.AttemptInput
			in.Correct, _ = f.GetBool("correct")
			in.ErrorType, _ = f.GetString("error-type")
			in.BloomLevel, _ = f.GetString("bloom")
			in.QuestionID, _ = f.GetString("question-id")
			in.LearnerAnswer, _ = f.GetString("answer")
			in.CorrectAnswer, _ = f.GetString("expected")
			in.ErrorStep, _ = f.GetString("error-step")

			res, err := get().svc.RecordAttempt(cmd.Context(), id, topic, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(cmd)
	addTopicFlag(cmd)
	cmd.Flags().Bool("correct", false, "The answer was correct")
	cmd.Flags().String("error-type", "", "computational, structural or conceptual (wrong answers only)")
	cmd.Flags().String("bloom", "", "Bloom level of the question (defaults to the topic's current level)")
	cmd.Flags().String("question-id", "", "Caller's question identifier")
	cmd.Flags().String("answer", "", "What the learner answered")
	cmd.Flags().String("expected", "", "The correct answer")
	cmd.Flags().String("error-step", "", "Where in the work the error happened")
	return cmd
}

func newAssessCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Recommend the next tutoring action for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.GetAssessment(cmd.Context(), id, topic)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(cmd)
	addTopicFlag(cmd)
	return cmd
}

func newBreakCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "break",
		Short: "Record that the learner took a break",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.RecordBreak(cmd.Context(), id, topic)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(cmd)
	addTopicFlag(cmd)
	return cmd
}
