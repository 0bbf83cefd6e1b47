package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, list and delete sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <topic>",
	Short: "Start a session from a topic and generate its root",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := strings.Join(args, " ")
		asMap, _ := cmd.Flags().GetBool("map")
		skip, _ := cmd.Flags().GetBool("no-generate")

		nodeType := tree.TypeArticle
		if asMap {
			nodeType = tree.TypeMap
		}
		s, root, err := current.sessions.CreateSession(cmd.Context(), topic, topic, nodeType)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Created session %s (root %s)\n", s.ID, root.ID)

		switch {
		case skip:
			return nil
		case asMap:
			return current.runMap(cmd, root)
		default:
			return current.runArticle(cmd, root, "")
		}
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.sessions.LoadSessions(cmd.Context()); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tROOTS\tUPDATED")
		for _, s := range current.sessions.Sessions() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, len(s.RootNodeIDs), s.UpdatedAt.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>",
	Short: "Delete a session and all of its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.sessions.DeleteSession(cmd.Context(), args[0])
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <session-id>",
	Short: "Print a session's node tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.sessions.LoadSession(ctx, args[0]); err != nil {
			return err
		}
		if _, ok := current.sessions.Session(args[0]); !ok {
			return fmt.Errorf("session %s not found", args[0])
		}

		out := cmd.OutOrStdout()
		tree.Walk(current.sessions.Tree(), func(e tree.Entry, depth int) {
			marker := ""
			if e.Node.Content == "" {
				marker = " (empty)"
			}
			if aspect := nodeAspect(e.Node); aspect != "" {
				marker += " [" + aspect + "]"
			}
			fmt.Fprintf(out, "%s%s %s %s%s\n", strings.Repeat("  ", depth), e.Node.ID, e.Node.Type, e.Node.Title, marker)
		})
		return nil
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect and delete nodes",
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <node-id>",
	Short: "Print a node's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := current.loadNode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ancestors := current.sessions.Ancestors(node.ID)
		slices.Reverse(ancestors)
		for _, a := range ancestors {
			fmt.Fprintf(out, "< %s\n", a.Title)
		}
		fmt.Fprintf(out, "# %s\n\n%s\n", node.Title, node.Content)
		return nil
	},
}

var nodeRmCmd = &cobra.Command{
	Use:   "rm <node-id>",
	Short: "Delete a node and its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := current.loadNode(ctx, args[0]); err != nil {
			return err
		}
		deleted, err := current.sessions.DeleteNode(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %d node(s)\n", len(deleted))
		return nil
	},
}

func init() {
	sessionNewCmd.Flags().Bool("map", false, "start with a topic map instead of an article")
	sessionNewCmd.Flags().Bool("no-generate", false, "create the session without generating the root")

	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionRmCmd)
	nodeCmd.AddCommand(nodeShowCmd, nodeRmCmd)
	rootCmd.AddCommand(sessionCmd, treeCmd, nodeCmd)
}
