package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomsync/atomsync/internal/cliformat"
	"github.com/atomsync/atomsync/internal/models"
)

var (
	syncIncremental bool
	syncDatabases   string
	ankiMinGrade    string
)

// ankiPushDeck is the fixed deck atomsync pushes cleaned atoms into.
const ankiPushDeck = "atomsync"

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull atoms from configured sources",
}

var syncNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Pull configured Notion databases",
	RunE:  runSyncNotion,
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Pull every configured collection (Notion and Anki)",
	RunE:  runSyncAll,
}

var syncAnkiPullCmd = &cobra.Command{
	Use:   "anki-pull",
	Short: "Pull the configured Anki collection",
	RunE:  runSyncAnkiPull,
}

var syncAnkiPushCmd = &cobra.Command{
	Use:   "anki-push",
	Short: "Push atoms at or above a quality grade into Anki as notes",
	RunE:  runSyncAnkiPush,
}

func init() {
	syncNotionCmd.Flags().BoolVar(&syncIncremental, "incremental", false, "pull only records changed since the last checkpoint")
	syncNotionCmd.Flags().StringVar(&syncDatabases, "database", "", "comma-separated collection names (default: all configured)")
	syncAnkiPushCmd.Flags().StringVar(&ankiMinGrade, "min-quality", "B", "minimum quality grade to push (A-F)")
	syncCmd.AddCommand(syncNotionCmd, syncAllCmd, syncAnkiPullCmd, syncAnkiPushCmd)
	rootCmd.AddCommand(syncCmd)
}

func collectionNames(a *app) []string {
	names := make([]string, 0, len(a.collections))
	for _, c := range a.collections {
		names = append(names, c.Collection)
	}
	return names
}

func runSync(cmd *cobra.Command, collections []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(collections) == 0 {
		collections = collectionNames(a)
	}
	if len(collections) == 0 {
		return usageErr(fmt.Errorf("no collections configured or requested"))
	}

	mode := models.SyncFull
	if syncIncremental {
		mode = models.SyncIncremental
	}

	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "dry-run: would sync %s (%s)\n", strings.Join(collections, ", "), mode)
		return nil
	}

	run, err := a.syncEngine.Run(cmd.Context(), mode, collections)
	if err != nil {
		return runtimeErr(err)
	}

	if output == "json" {
		return printJSON(cmd, run)
	}
	cliformat.Summary(cmd.OutOrStdout(), string(run.Status), map[string]int{
		"created":    run.Created,
		"updated":    run.Updated,
		"tombstoned": run.Tombstoned,
	})
	if run.ErrorMessage != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "warning:", run.ErrorMessage)
	}
	return nil
}

func runSyncNotion(cmd *cobra.Command, args []string) error {
	var collections []string
	if syncDatabases != "" {
		collections = strings.Split(syncDatabases, ",")
	}
	return runSync(cmd, collections)
}

func runSyncAll(cmd *cobra.Command, args []string) error {
	return runSync(cmd, nil)
}

func runSyncAnkiPull(cmd *cobra.Command, args []string) error {
	return runSync(cmd, []string{"anki"})
}

// gradeLadder orders grades best-to-worst so gradesAtOrAbove can walk
// a prefix of it.
var gradeLadder = []models.QualityGrade{models.GradeA, models.GradeB, models.GradeC, models.GradeD, models.GradeF}

func gradesAtOrAbove(min models.QualityGrade) []models.QualityGrade {
	for i, g := range gradeLadder {
		if g == min {
			return gradeLadder[:i+1]
		}
	}
	return gradeLadder
}

func runSyncAnkiPush(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.anki == nil {
		return usageErr(fmt.Errorf("anki.connect_url is not configured"))
	}

	grades := gradesAtOrAbove(models.QualityGrade(ankiMinGrade))
	atoms, err := a.store.ListAtomsByGrade(cmd.Context(), grades)
	if err != nil {
		return runtimeErr(err)
	}

	pushed := 0
	for _, atom := range atoms {
		if atom.Source == models.SourceAnki || !atom.Scheduled() {
			continue
		}
		if dryRun {
			pushed++
			continue
		}
		if _, err := a.anki.PushNote(cmd.Context(), ankiPushDeck, "Basic",
			map[string]string{"Front": atom.Front, "Back": atom.Back}, nil); err != nil {
			a.log.Error("anki push failed", "atom_id", atom.ID, "error", err)
			continue
		}
		pushed++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d of %d eligible atoms to deck %q\n", pushed, len(atoms), ankiPushDeck)
	return nil
}
