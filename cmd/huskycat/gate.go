package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/runstore"
)

// runGate exposes should_gate standalone, for shell-script composition
// outside of huskycat's own hook - an enrichment ccfeedback's
// git-hook-adjacent framing invites (spec §6.1) but that ccfeedback
// itself never needed, since its gating decision was always
// embedded in its own hook response.
func runGate(args []string) int {
	fs := flag.NewFlagSet("gate", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s gate\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print should_gate's decision for this repository and exit accordingly:\n")
		fmt.Fprintf(os.Stderr, "  0 - Allow, 1 - Block, 2 - Prompt (only when stdin is a terminal)\n")
	}
	if err := fs.Parse(args); err != nil {
		return 3
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return 4
	}

	store := runstore.New(repoRoot, runstore.Config{})
	decision, err := store.ShouldGate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return 4
	}
	decision = decision.Resolve(isInteractive())

	fmt.Println(decision)
	switch decision {
	case runstore.DecisionAllow:
		return 0
	case runstore.DecisionPrompt:
		return 2
	default:
		return 1
	}
}
