package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atomsync/atomsync/internal/cliformat"
	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/orchestrator"
)

var (
	cleanRewrite  bool
	cleanMinGrade string
	cleanResume   bool
	checkLimit    int
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run the cleaning pipeline: transform, analyze, deduplicate, optionally rewrite",
}

var cleanRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline against every configured collection",
	RunE:  runCleanRun,
}

var cleanCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List atoms currently graded at or below the rewrite floor",
	RunE:  runCleanCheck,
}

var cleanDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List open duplicate groups",
	RunE:  runCleanDuplicates,
}

func init() {
	cleanRunCmd.Flags().BoolVar(&cleanRewrite, "rewrite", false, "enqueue low-grade atoms for AI rewrite")
	cleanRunCmd.Flags().StringVar(&cleanMinGrade, "min-grade", "D", "rewrite atoms at or below this grade")
	cleanRunCmd.Flags().BoolVar(&cleanResume, "resume", false, "skip stages already recorded done for this run")
	cleanCheckCmd.Flags().IntVar(&checkLimit, "limit", 20, "maximum atoms to list")
	cleanCmd.AddCommand(cleanRunCmd, cleanCheckCmd, cleanDuplicatesCmd)
	rootCmd.AddCommand(cleanCmd)
}

func runCleanRun(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := orchestrator.Options{
		EnableRewrite: cleanRewrite,
		MinGrade:      models.QualityGrade(cleanMinGrade),
		DryRun:        dryRun,
		Resume:        cleanResume,
	}

	runID := uuid.NewString()
	summary, err := a.pipeline.Run(cmd.Context(), runID, a.collections, opts)
	if err != nil {
		return runtimeErr(err)
	}

	if output == "json" {
		return printJSON(cmd, summary)
	}
	cliformat.Summary(cmd.OutOrStdout(), string(summary.Status), map[string]int{
		"upserted":          summary.TransformUpserted,
		"skipped":           summary.TransformSkipped,
		"reanalyzed":        summary.Reanalyzed,
		"duplicate_groups":  summary.DuplicateGroups,
		"rewrite_enqueued":  summary.RewriteEnqueued,
	})
	for _, w := range summary.Warnings {
		fmt.Fprintln(cmd.OutOrStdout(), "warning:", w)
	}
	return nil
}

func runCleanCheck(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	atoms, err := a.store.ListAtomsByGrade(cmd.Context(), []models.QualityGrade{models.GradeD, models.GradeF})
	if err != nil {
		return runtimeErr(err)
	}
	if len(atoms) > checkLimit {
		atoms = atoms[:checkLimit]
	}

	if output == "json" {
		return printJSON(cmd, atoms)
	}
	t := cliformat.NewTable(cmd.OutOrStdout(), "ATOM", "GRADE", "SCORE", "FRONT")
	t.SetMaxWidth(3, 60)
	for _, a := range atoms {
		t.AddRow(a.ID, string(a.QualityGrade), fmt.Sprint(a.QualityScore), a.Front)
	}
	return t.Render()
}

func runCleanDuplicates(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	groups, err := a.store.ListOpenDuplicateGroups(cmd.Context())
	if err != nil {
		return runtimeErr(err)
	}

	if output == "json" {
		return printJSON(cmd, groups)
	}
	t := cliformat.NewTable(cmd.OutOrStdout(), "GROUP", "METHOD", "SIMILARITY", "ATOMS")
	for _, g := range groups {
		t.AddRow(g.ID, string(g.Method), fmt.Sprintf("%.2f", g.Similarity), fmt.Sprint(len(g.AtomIDs)))
	}
	return t.Render()
}
