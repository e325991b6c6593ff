package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleo-dev/cleo/internal/rpc"
)

var cliVersion = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cleo",
		Short:         "CLEO task-management daemon client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("actor", "", "actor name recorded on the audit row (defaults to $CLEO_SESSION_ID, then $USER)")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "RPC request timeout")

	root.AddCommand(
		newTaskCmd(),
		newSessionCmd(),
		newLifecycleCmd(),
		newDaemonCmd(),
		newCallCmd(),
	)
	return root
}

// actorFromFlags resolves the caller identity: --actor, then
// CLEO_SESSION_ID, then $USER, in that precedence order.
func actorFromFlags(cmd *cobra.Command) string {
	actor, _ := cmd.Flags().GetString("actor")
	if actor != "" {
		return actor
	}
	if sess := os.Getenv("CLEO_SESSION_ID"); sess != "" {
		return sess
	}
	return os.Getenv("USER")
}

// dial connects to the daemon socket for the command's resolved
// workspace, returning a clear error if the daemon isn't running.
func dial(cmd *cobra.Command) (*rpc.Client, error) {
	root, err := resolveProjectRoot()
	if err != nil {
		return nil, err
	}
	stateDir := resolveStateDir(root)
	path := socketPath(stateDir)

	timeout, _ := cmd.Flags().GetDuration("timeout")

	client, err := rpc.TryConnectWithTimeout(path, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", path, err)
	}
	if client == nil {
		return nil, fmt.Errorf("no daemon listening at %s (run `cleo daemon start`)", path)
	}
	client.SetTimeout(timeout)
	return client, nil
}

// callAndPrint dials the daemon, issues req, and prints the envelope JSON
// to stdout. It returns nil on success and errExitWithResponse when the
// response reports a failure; main exits 1 for any returned error, so
// the envelope's own exit code is not used as the process exit status.
func callAndPrint(cmd *cobra.Command, req rpc.Request) error {
	client, err := dial(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Call(req)
	if err != nil {
		return err
	}

	var pretty map[string]any
	if len(resp.Data) > 0 {
		if jsonErr := json.Unmarshal(resp.Data, &pretty); jsonErr == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(resp.Data))
		}
	}

	if !resp.Success {
		if resp.Error != "" {
			fmt.Fprintln(os.Stderr, resp.Error)
		}
		return errExitWithResponse
	}
	return nil
}

// errExitWithResponse signals callAndPrint already printed the
// envelope's own error; main just needs a non-zero exit.
var errExitWithResponse = fmt.Errorf("request failed")

// buildRequest marshals params into a gateway request envelope.
func buildRequest(gateway, domain, operation string, params map[string]any, actor string) (rpc.Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return rpc.Request{}, fmt.Errorf("marshal params: %w", err)
	}
	return rpc.Request{
		Gateway:   gateway,
		Domain:    domain,
		Operation: operation,
		Params:    raw,
		Actor:     actor,
	}, nil
}
