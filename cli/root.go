// Package cli is the tenderd command line.
package cli

import (
	"fmt"
	"os"

	"github.com/coder/serpent"
)

const envPrefix = "TENDERD_"

type RootCmd struct{}

func (r *RootCmd) Command() *serpent.Command {
	return &serpent.Command{
		Use:   "tenderd",
		Short: "Tenant-scoped tender and project lifecycle server",
		Handler: func(inv *serpent.Invocation) error {
			_, _ = fmt.Fprintf(inv.Stderr, "Usage: %s <command>\n\nCommands:\n", inv.Command.Name())
			for _, child := range inv.Command.Children {
				_, _ = fmt.Fprintf(inv.Stderr, "  %-10s %s\n", child.Name(), child.Short)
			}
			return nil
		},
		Children: []*serpent.Command{
			r.Server(),
		},
	}
}

// Run executes the root command with the process arguments and
// environment, exiting non-zero on error.
func (r *RootCmd) Run() {
	err := r.Command().Invoke().WithOS().Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
