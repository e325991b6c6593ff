package main

import "github.com/spf13/cobra"

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, end, and inspect sessions",
	}
	cmd.AddCommand(
		newSessionStartCmd(),
		newSessionEndCmd(),
		newSessionStatusCmd(),
	)
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if cmd.Flags().Changed("name") {
				v, _ := cmd.Flags().GetString("name")
				params["name"] = v
			}
			if cmd.Flags().Changed("agent") {
				v, _ := cmd.Flags().GetString("agent")
				params["agent"] = v
			}
			if cmd.Flags().Changed("focus") {
				v, _ := cmd.Flags().GetString("focus")
				params["autoFocusTaskId"] = v
			}
			req, err := buildRequest("mutate", "session", "start", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	cmd.Flags().String("name", "", "session name")
	cmd.Flags().String("agent", "", "agent identity recorded on the session")
	cmd.Flags().String("focus", "", "task ID to auto-focus on start")
	return cmd
}

func newSessionEndCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end <sessionId>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"sessionId": args[0]}
			if cmd.Flags().Changed("note") {
				v, _ := cmd.Flags().GetString("note")
				params["note"] = v
			}
			req, err := buildRequest("mutate", "session", "end", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	cmd.Flags().String("note", "", "session note (required if session.requireSessionNote is set)")
	return cmd
}

func newSessionStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [sessionId]",
		Short: "Show the current session's status, or a specific session by ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req, err := buildRequest("query", "session", "show", map[string]any{"sessionId": args[0]}, actorFromFlags(cmd))
				if err != nil {
					return err
				}
				return callAndPrint(cmd, req)
			}
			req, err := buildRequest("query", "session", "status", map[string]any{}, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	return cmd
}
