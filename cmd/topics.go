package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
)

func newTopicsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage a learner's topics and prerequisite graphs",
	}

	add := &cobra.Command{
		Use:   "add TOPIC...",
		Short: "Start tracking topics",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			res, err := get().svc.AddTopics(cmd.Context(), id, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(add)

	del := &cobra.Command{
		Use:   "delete",
		Short: "Stop tracking a topic and drop its graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			if err := get().svc.DeleteTopic(cmd.Context(), id, topic); err != nil {
				return err
			}
			name, _ := learner.NormalizeTopic(topic)
			return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": name})
		},
	}
	addLearnerFlag(del)
	addTopicFlag(del)

	graph := &cobra.Command{
		Use:   "graph",
		Short: "Store a topic's prerequisite graph from a JSON or YAML file",
		Long: "The file maps each topic to the topics it depends on:\n\n" +
			"  fractions: [division, multiplication]\n" +
			"  division: [multiplication]\n\n" +
			"Use --file - to read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := learnerFlag(cmd)
			if err != nil {
				return err
			}
			topic, err := topicFlag(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			edges, err := readGraph(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			res, err := get().svc.StoreTopicGraph(cmd.Context(), id, topic, edges)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addLearnerFlag(graph)
	addTopicFlag(graph)
	graph.Flags().StringP("file", "f", "", "Graph file (.json, .yaml or - for stdin)")

	cmd.AddCommand(add, del, graph)
	return cmd
}

// readGraph loads a graph document from path, or from stdin when path is "-".
func readGraph(stdin io.Reader, path string) (map[string][]string, error) {
	if path == "" {
		return nil, errs.InvalidInput("--file is required")
	}
	var (
		data []byte
		err  error
	)
	format := learner.FormatFromPath(path)
	if path == "-" {
		// YAML accepts JSON documents too.
		format = learner.FormatYAML
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errs.InvalidInput("read graph: %v", err)
	}
	return learner.ParseGraph(data, format)
}
