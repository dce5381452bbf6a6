package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// hookScript is the pre-commit hook body huskycat installs. It
// delegates entirely to the huskycat binary so the hook itself never
// needs updating when flags change.
const hookScript = `#!/bin/sh
# Installed by huskycat init. Do not edit by hand - re-run
# "huskycat init --force" to regenerate.
exec huskycat validate --staged --mode GitHooksBlocking
`

// initOptions mirrors ccfeedback's InitOptions, keeping only its
// dry-run and force switches: there is one pre-commit hook per
// repository (located via `git rev-parse --git-path hooks`), so there
// is no global-vs-project scoping.
type initOptions struct {
	DryRun bool
	Force  bool
}

func runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Show what would be changed without applying")
	force := fs.Bool("force", false, "Apply changes without confirmation")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s init [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Install a git pre-commit hook that runs huskycat validate.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 3
	}

	opts := initOptions{DryRun: *dryRun, Force: *force}

	if !isHuskycatAvailable() {
		fmt.Fprintf(os.Stderr, "Warning: huskycat command not found in PATH\n")
		fmt.Fprintf(os.Stderr, "Make sure huskycat is installed and available in your PATH\n\n")
	}

	hookPath, err := gitHookPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	modified, err := processHookFile(hookPath, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if modified {
		fmt.Println("\nNext steps:")
		fmt.Println("1. Create a .huskycat.yaml to configure tool selection (optional):")
		fmt.Println("   tools:")
		fmt.Println("     golangci-lint:")
		fmt.Println("       enabled: true")
		fmt.Println("2. Test the hook:")
		fmt.Println("   huskycat validate --staged")
	}
	return 0
}

func gitHookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (or git not installed): %w", err)
	}
	dir := strings.TrimSpace(string(out))
	return filepath.Join(dir, "pre-commit"), nil
}

// processHookFile mirrors jrossi/ccfeedback's processSettingsFile:
// read existing content, propose the new content, show a diff-style
// preview, back up before overwriting, and honor --dry-run/--force.
func processHookFile(hookPath string, opts initOptions) (bool, error) {
	existing, err := os.ReadFile(hookPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read hook: %w", err)
	}

	if strings.Contains(string(existing), "huskycat validate") {
		fmt.Println("✓ huskycat pre-commit hook is already configured")
		return false, nil
	}

	fmt.Println("\nProposed changes:")
	fmt.Println("==================================================")
	if len(existing) == 0 {
		fmt.Println("Creating new pre-commit hook:")
		for _, line := range strings.Split(hookScript, "\n") {
			if line != "" {
				fmt.Printf("+ %s\n", line)
			}
		}
	} else {
		fmt.Println("Appending huskycat invocation to existing pre-commit hook:")
		fmt.Printf("+ exec huskycat validate --staged --mode GitHooksBlocking\n")
	}
	fmt.Println("==================================================")

	if opts.DryRun {
		fmt.Println("\n(Dry run - no changes were made)")
		return false, nil
	}

	if !opts.Force {
		fmt.Print("\nApply these changes? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Canceled - no changes made")
			return false, nil
		}
	}

	if len(existing) > 0 {
		backupPath := fmt.Sprintf("%s.backup-%s", hookPath, time.Now().Format("20060102-150405"))
		if err := os.WriteFile(backupPath, existing, 0o644); err != nil {
			return false, fmt.Errorf("backup existing hook: %w", err)
		}
		fmt.Printf("✓ Created backup: %s\n", backupPath)
	}

	content := hookScript
	if len(existing) > 0 {
		content = string(existing) + "\nexec huskycat validate --staged --mode GitHooksBlocking\n"
	}

	if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
		return false, fmt.Errorf("create hooks directory: %w", err)
	}
	if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
		return false, fmt.Errorf("write hook: %w", err)
	}
	fmt.Printf("✓ Updated: %s\n", hookPath)
	return true, nil
}

func isHuskycatAvailable() bool {
	paths := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(p, "huskycat")); err == nil {
			return true
		}
		if _, err := os.Stat(filepath.Join(p, "huskycat.exe")); err == nil {
			return true
		}
	}
	return false
}
