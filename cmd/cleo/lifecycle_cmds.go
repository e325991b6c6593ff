package main

import "github.com/spf13/cobra"

func newLifecycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lifecycle",
		Short: "Drive a task through its lifecycle stages",
	}
	cmd.AddCommand(
		newLifecycleStartCmd(),
		newLifecycleProgressCmd(),
		newLifecycleGoToCmd(),
		newLifecycleSkipCmd(),
		newLifecycleBlockCmd(),
		newLifecycleUnblockCmd(),
	)
	return cmd
}

func forceFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("force", false, "override a normally-rejected transition")
}

func newLifecycleStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <taskId>",
		Short: "Enter a task's pipeline at its first stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest("mutate", "lifecycle", "start", map[string]any{"taskId": args[0]}, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
}

func newLifecycleProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <taskId>",
		Short: "Advance a task to its next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			req, err := buildRequest("mutate", "lifecycle", "progress", map[string]any{"taskId": args[0], "force": force}, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	forceFlag(cmd)
	return cmd
}

func newLifecycleGoToCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goto <taskId> <stage>",
		Short: "Jump a task directly to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			params := map[string]any{"taskId": args[0], "target": args[1], "force": force}
			req, err := buildRequest("mutate", "lifecycle", "goto", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	forceFlag(cmd)
	return cmd
}

func newLifecycleSkipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip <taskId> <reason>",
		Short: "Skip the task's current stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			params := map[string]any{"taskId": args[0], "reason": args[1], "force": force}
			req, err := buildRequest("mutate", "lifecycle", "skip", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	forceFlag(cmd)
	return cmd
}

func newLifecycleBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <taskId> <reason>",
		Short: "Mark a task blocked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"taskId": args[0], "reason": args[1]}
			req, err := buildRequest("mutate", "lifecycle", "block", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
}

func newLifecycleUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <taskId>",
		Short: "Clear a task's blocked state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest("mutate", "lifecycle", "unblock", map[string]any{"taskId": args[0]}, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
}
