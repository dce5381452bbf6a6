package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/engine"
)

// runShowTools mirrors jrossi/ccfeedback's cmd/ccfeedback-show
// introspection output, generalized from "which config rules apply to
// this file" to "what is in the registry". It prints each descriptor's
// catalog fields only; it does not resolve tools.
func runShowTools(args []string) int {
	fs := flag.NewFlagSet("show-tools", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s show-tools\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print the registered validator catalog.\n")
	}
	if err := fs.Parse(args); err != nil {
		return 3
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return 4
	}

	eng, err := engine.NewBuilder().WithRepoRoot(repoRoot).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return 3
	}

	for _, d := range eng.Registry().All() {
		fmt.Printf("%-24s category=%-12s executable=%-20s applies_to=%v depends_on=%v\n",
			d.Name, d.Category, d.Executable, d.AppliesTo, d.DependsOn)
	}
	return 0
}
