// Command cleo is the thin CLI front end for the daemon: it parses
// flags, builds a gateway request, dials the daemon's Unix socket, and
// prints the returned envelope as JSON. Output formatting (tree views,
// colour, tables) is out of scope; that's left to editor/agent
// integrations that consume the JSON directly.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
