// Package cli implements rdtbench's command surface: a single run command
// with flags for every scenario parameter spec.md §6 and §8 name, plus
// the live metrics/progress extensions SPEC_FULL.md adds on top.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Exit codes, per spec.md §7: 0 is a clean sweep (every run succeeded),
// 1 is a sweep that completed but excluded one or more runs for hitting
// their safety bound, 2 is a configuration error that prevented any run
// from starting at all.
const (
	ExitSuccess     = 0
	ExitRunsExcluded = 1
	ExitConfigError = 2
)

// Execute builds and runs the root command, returning the process exit
// code main should use.
func Execute() int {
	exitCode := ExitSuccess
	root := newRootCmd(&exitCode)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), err)
		if exitCode == ExitSuccess {
			exitCode = ExitConfigError
		}
	}
	return exitCode
}

func newRootCmd(exitCode *int) *cobra.Command {
	root := &cobra.Command{
		Use:   "rdtbench",
		Short: "Compare Go-Back-N, Selective Repeat, and TCP-like reliable data transfer over a simulated lossy link",
	}
	root.AddCommand(newRunCmd(exitCode))
	return root
}
