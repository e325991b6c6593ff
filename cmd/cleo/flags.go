package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// registerCommonTaskFlags registers the flags shared by the commands
// that create or update a task.
func registerCommonTaskFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("description", "d", "", "task description")
	cmd.Flags().String("body", "", "alias for --description (GitHub CLI convention)")
	_ = cmd.Flags().MarkHidden("body")
	cmd.Flags().StringP("message", "m", "", "alias for --description (git commit convention)")
	_ = cmd.Flags().MarkHidden("message")
	cmd.Flags().String("body-file", "", "read description from file (use - for stdin)")
	cmd.Flags().StringP("priority", "p", "", "priority (critical, high, medium, low)")
	cmd.Flags().String("type", "", "task type (epic, task, subtask)")
	cmd.Flags().String("size", "", "task size (small, medium, large)")
	cmd.Flags().String("parent", "", "parent task ID")
	cmd.Flags().StringSlice("labels", nil, "comma-separated labels")
	cmd.Flags().StringSlice("depends-on", nil, "comma-separated task IDs this task depends on")
}

// getDescriptionFlag resolves --body-file, --description, --body, and
// --message in that precedence order (the file flag wins, then the
// first of description/body/message that was explicitly set).
// Supports reading from stdin via --body-file=-.
func getDescriptionFlag(cmd *cobra.Command) (string, bool, error) {
	if cmd.Flags().Changed("body-file") {
		path, _ := cmd.Flags().GetString("body-file")
		content, err := readBodyFile(path)
		if err != nil {
			return "", false, fmt.Errorf("read body file: %w", err)
		}
		return content, true, nil
	}

	desc, _ := cmd.Flags().GetString("description")
	body, _ := cmd.Flags().GetString("body")
	message, _ := cmd.Flags().GetString("message")

	switch {
	case cmd.Flags().Changed("description"):
		return desc, true, nil
	case cmd.Flags().Changed("body"):
		return body, true, nil
	case cmd.Flags().Changed("message"):
		return message, true, nil
	}
	return "", false, nil
}

func readBodyFile(path string) (string, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		// #nosec G304 - path comes from an explicit user flag
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		reader = f
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
