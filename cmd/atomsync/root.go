package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dryRun   bool
	output   string
	cfgFile  string
)

// exitError tags an error with the process exit code §7 assigns it:
// 1 generic failure, 2 usage, 3 config.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error  { return e.err }

func configErr(err error) error { return &exitError{code: 3, err: err} }
func usageErr(err error) error  { return &exitError{code: 2, err: err} }
func runtimeErr(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: 1, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "atomsync",
	Short: "Ingest, clean, and study knowledge atoms synced from Notion and Anki",
	Long: `atomsync pulls learning atoms from Notion and Anki, grades and
deduplicates them, optionally routes low-quality atoms through an
AI rewriter with human review, and schedules study sessions with an
adaptive FSRS engine.

Commands:
  sync      Pull atoms from configured sources
  clean     Run the cleaning pipeline (transform, analyze, dedupe, rewrite)
  review    Work the AI-rewrite review queue
  study     Run and inspect study sessions
  cortex    Curriculum introspection and study-plan suggestions
  serve     Run the HTTP control-plane server`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without writing")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "atomsync.toml", "path to config file")
}

// Execute runs the command tree and exits with the code the failing
// layer assigned: an *exitError from a subcommand exits with its own
// code; any other error (including a bare cobra usage error such as an
// unknown command or flag) exits 2.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	code := 2
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(code)
}

func main() {
	Execute()
}
