package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/generate"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

var articleCmd = &cobra.Command{
	Use:   "article <node-id>",
	Short: "Stream an article into a node",
	Long: `Article (re)generates the node's article from its title and streams it to
stdout. The node's content is replaced and persisted while tokens arrive.
Ctrl-C aborts the generation and keeps what was received.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := current.loadNode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		aspect, _ := cmd.Flags().GetString("aspect")
		if aspect == "" {
			aspect = nodeAspect(node)
		}
		return current.runArticle(cmd, node, aspect)
	},
}

var mapCmd = &cobra.Command{
	Use:   "map <node-id>",
	Short: "Generate a topic map into a node",
	Long: `Map asks the model for related topics, then for a grouped layout of them,
and stores the layout JSON as the node's content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := current.loadNode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return current.runMap(cmd, node)
	},
}

var exploreCmd = &cobra.Command{
	Use:   "explore <node-id> [topic]",
	Short: "Branch a new child node off a node and generate it",
	Long: `Explore adds a child under the node and generates it. The child is about
topic, or about the parent's title focused on --aspect.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		parent, err := current.loadNode(ctx, args[0])
		if err != nil {
			return err
		}

		aspect, _ := cmd.Flags().GetString("aspect")
		asMap, _ := cmd.Flags().GetBool("map")
		topic := parent.Title
		if len(args) == 2 {
			topic = args[1]
		} else if aspect == "" {
			return fmt.Errorf("explore needs a topic or --aspect")
		}

		fields := tree.NodeFields{
			Type:      tree.TypeArticle,
			ParentID:  parent.ID,
			SessionID: parent.SessionID,
			Title:     topic,
		}
		if asMap {
			fields.Type = tree.TypeMap
		}
		if aspect != "" {
			fields.Metadata = map[string]any{"aspect": aspect}
		}

		child, err := current.sessions.AddNode(ctx, fields)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Created node %s\n", child.ID)

		if asMap {
			return current.runMap(cmd, child)
		}
		return current.runArticle(cmd, child, aspect)
	},
}

func init() {
	articleCmd.Flags().String("aspect", "", "focus the article on one aspect of the topic")
	exploreCmd.Flags().String("aspect", "", "focus the child article on one aspect of the parent topic")
	exploreCmd.Flags().Bool("map", false, "create a map node instead of an article")

	rootCmd.AddCommand(articleCmd, mapCmd, exploreCmd)
}

// runArticle streams an article into node and waits for it to stop.
func (a *app) runArticle(cmd *cobra.Command, node tree.Node, aspect string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	printer, unsubscribe, err := a.subscribe(out, node.ID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	h := a.orchestrator().Generate(ctx, node.ID, node.Title, aspect)
	// ctx may already be cancelled here; waiting on it would return early.
	genErr := h.Wait(context.Background())
	printer.wait()
	fmt.Fprintln(out)

	switch h.State() {
	case generate.StateAborted:
		// Abort drops the pending flush, so the store may lag behind.
		if err := a.sessions.PersistNode(context.Background(), node.ID); err != nil {
			return fmt.Errorf("save partial article: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted; partial article kept.")
		return nil
	case generate.StateErrored:
		if partial := h.Content(); partial != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Generation failed after %d characters; partial article kept.\n", len(partial))
		}
		return genErr
	}
	return nil
}

// runMap generates a map into node and prints its groups.
func (a *app) runMap(cmd *cobra.Command, node tree.Node) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	printer, unsubscribe, err := a.subscribe(cmd.ErrOrStderr(), node.ID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	h := a.mapOrchestrator().Generate(ctx, node.ID, node.Title)
	genErr := h.Wait(context.Background())
	printer.wait()
	if genErr != nil {
		return genErr
	}

	layout, ok := h.Layout()
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
		return nil
	}
	for _, g := range layout.Groups {
		names := make([]string, len(g.Topics))
		for i, p := range g.Topics {
			names[i] = p.Name
		}
		fmt.Fprintf(out, "%s: %s\n", g.Name, strings.Join(names, ", "))
	}
	return nil
}

func nodeAspect(n tree.Node) string {
	aspect, _ := n.Metadata["aspect"].(string)
	return aspect
}
