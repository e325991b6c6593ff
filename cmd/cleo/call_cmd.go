package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newCallCmd is the escape hatch for operations the other subcommands
// don't wrap individually — it exercises the full gateway registry
// without the CLI needing a dedicated command per (domain, operation)
// pair.
func newCallCmd() *cobra.Command {
	var paramsJSON string
	cmd := &cobra.Command{
		Use:   "call <query|mutate> <domain> <operation>",
		Short: "Call any gateway operation directly with raw JSON params",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			gatewayName, domain, operation := args[0], args[1], args[2]
			if gatewayName != "query" && gatewayName != "mutate" {
				return fmt.Errorf("first argument must be %q or %q", "query", "mutate")
			}

			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}

			req, err := buildRequest(gatewayName, domain, operation, params, actorFromFlags(cmd))
			if err != nil {
				return err
			}
			return callAndPrint(cmd, req)
		},
	}
	cmd.Flags().StringVar(&paramsJSON, "params", "", `params as a JSON object, e.g. '{"taskId":"t-1"}'`)
	return cmd
}
