package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/agents"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the model for aspects and topics to explore next",
}

var suggestAspectsCmd = &cobra.Command{
	Use:   "aspects <node-id>",
	Short: "List aspects of a node's topic beyond the fixed ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		node, err := current.loadNode(ctx, args[0])
		if err != nil {
			return err
		}

		existing := slices.Clone(current.cfg.Aspects)
		for _, child := range current.sessions.Children(node.ID) {
			if aspect := nodeAspect(child); aspect != "" && !slices.Contains(existing, aspect) {
				existing = append(existing, aspect)
			}
		}

		res, err := agents.Aspects(ctx, current.client, current.cfg.LLM, node.Title, existing)
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), res.Topics)
		return nil
	},
}

var suggestTopicsCmd = &cobra.Command{
	Use:   "topics <node-id>",
	Short: "List topics related to a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		node, err := current.loadNode(ctx, args[0])
		if err != nil {
			return err
		}
		res, err := agents.TopicSuggestions(ctx, current.client, current.cfg.LLM, node.Title, current.cfg.StarterTopics)
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), res.Topics)
		return nil
	},
}

var suggestRandomCmd = &cobra.Command{
	Use:   "random",
	Short: "Pick a random topic to start a session with",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := agents.RandomTopic(cmd.Context(), current.client, current.cfg.LLM)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Topic)
		return nil
	},
}

var suggestExpandCmd = &cobra.Command{
	Use:   "expand <map-node-id> <topic>",
	Short: "List new topics around one topic of a map",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		node, err := current.loadNode(ctx, args[0])
		if err != nil {
			return err
		}
		if node.Type != tree.TypeMap {
			return fmt.Errorf("node %s is not a map", node.ID)
		}

		res, err := agents.MapExpansion(ctx, current.client, current.cfg.LLM, args[1], mapTopics(node))
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), res.Topics)
		return nil
	},
}

func init() {
	suggestCmd.AddCommand(suggestAspectsCmd, suggestTopicsCmd, suggestRandomCmd, suggestExpandCmd)
	rootCmd.AddCommand(suggestCmd)
}

// mapTopics returns the topic list stored on a map node.
func mapTopics(n tree.Node) []string {
	switch v := n.Metadata["topics"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func printList(w io.Writer, items []string) {
	for i, item := range items {
		fmt.Fprintf(w, "%d. %s\n", i+1, item)
	}
}
