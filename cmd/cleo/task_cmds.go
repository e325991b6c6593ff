package main

import (
	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Create, inspect, and mutate tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskShowCmd(),
		newTaskUpdateCmd(),
		newTaskCompleteCmd(),
		newTaskListCmd(),
	)
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"title": args[0]}
			if desc, ok, err := getDescriptionFlag(cmd); err != nil {
				return err
			} else if ok {
				params["description"] = desc
			}
			for _, f := range []string{"priority", "type", "size", "parent"} {
				if cmd.Flags().Changed(f) {
					v, _ := cmd.Flags().GetString(f)
					params[flagToParamKey(f)] = v
				}
			}
			if cmd.Flags().Changed("labels") {
				labels, _ := cmd.Flags().GetStringSlice("labels")
				params["labels"] = labels
			}
			if cmd.Flags().Changed("depends-on") {
				deps, _ := cmd.Flags().GetStringSlice("depends-on")
				params["dependsOn"] = deps
			}

			req, err := buildRequest("mutate", "tasks", "add", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	registerCommonTaskFlags(cmd)
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <taskId>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest("query", "tasks", "show", map[string]any{"taskId": args[0]}, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
}

func newTaskUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <taskId>",
		Short: "Update a task's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"taskId": args[0]}
			if desc, ok, err := getDescriptionFlag(cmd); err != nil {
				return err
			} else if ok {
				params["description"] = desc
			}
			for _, f := range []string{"priority", "type", "size"} {
				if cmd.Flags().Changed(f) {
					v, _ := cmd.Flags().GetString(f)
					params[flagToParamKey(f)] = v
				}
			}
			req, err := buildRequest("mutate", "tasks", "update", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	registerCommonTaskFlags(cmd)
	return cmd
}

func newTaskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <taskId>",
		Short: "Mark a task complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest("mutate", "tasks", "complete", map[string]any{"taskId": args[0]}, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
}

func newTaskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			for _, f := range []string{"status", "parent", "type", "phase"} {
				if cmd.Flags().Changed(f) {
					v, _ := cmd.Flags().GetString(f)
					params[flagToParamKey(f)] = v
				}
			}
			if cmd.Flags().Changed("limit") {
				limit, _ := cmd.Flags().GetInt("limit")
				params["limit"] = limit
			}
			req, err := buildRequest("query", "tasks", "list", params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	cmd.Flags().String("status", "", "filter by status")
	cmd.Flags().String("parent", "", "filter by parent task ID")
	cmd.Flags().String("type", "", "filter by task type")
	cmd.Flags().String("phase", "", "filter by lifecycle stage")
	cmd.Flags().Int("limit", 0, "max rows returned")
	return cmd
}

// flagToParamKey maps a kebab-case flag name to the camelCase wire
// param key the gateway's param structs expect.
func flagToParamKey(flag string) string {
	switch flag {
	case "parent":
		return "parentId"
	case "depends-on":
		return "dependsOn"
	default:
		return flag
	}
}
