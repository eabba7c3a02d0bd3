package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/atomsync/atomsync/internal/cliformat"
	"github.com/atomsync/atomsync/internal/interleave"
	"github.com/atomsync/atomsync/internal/mastery"
	"github.com/atomsync/atomsync/internal/models"
)

var (
	cortexSection string
	cortexPlan    bool
)

// cortexCmd groups curriculum-introspection commands grounded entirely
// in the Diagnosis Engine's persona state and the Mastery Aggregator's
// struggle-set output — spec.md §6.3 names these three commands but
// never gives them semantics in §4, so the decision (recorded in
// DESIGN.md) is to derive them from existing H/K outputs rather than
// invent a new subsystem.
var cortexCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Curriculum introspection and study-plan suggestions",
}

var cortexOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Propose a remediation-ratio and session-size adjustment from struggle trends",
	RunE:  runCortexOptimize,
}

var cortexSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Surface the top-3 sections needing remediation",
	RunE:  runCortexSuggest,
}

var cortexReadCmd = &cobra.Command{
	Use:   "read <m>",
	Short: "Print a section's mastery rollup",
	Args:  cobra.ExactArgs(1),
	RunE:  runCortexRead,
}

func init() {
	cortexOptimizeCmd.Flags().BoolVar(&cortexPlan, "plan", false, "print the proposal only (optimize never mutates persisted config in this build)")
	cortexReadCmd.Flags().StringVar(&cortexSection, "section", "", "narrow the rollup to a sub-section (default: <m> itself)")
	cortexCmd.AddCommand(cortexOptimizeCmd, cortexSuggestCmd, cortexReadCmd)
	rootCmd.AddCommand(cortexCmd)
}

// sectionStats rolls every currently-scheduled atom up by section,
// ignoring response-derived accuracy (no store method lists every
// learner's responses across all sections at once) — the rollups
// below are FSRS-signal-only, a bounded simplification over the full
// mastery.Aggregate output available to `study stats`.
func sectionStats(cmd *cobra.Command, a *app) (map[string][]mastery.AtomStat, error) {
	atoms, err := a.store.ListAllScheduledAtoms(cmd.Context())
	if err != nil {
		return nil, err
	}
	bySection := make(map[string][]mastery.AtomStat)
	for _, atom := range atoms {
		if atom.SectionID == nil {
			continue
		}
		bySection[*atom.SectionID] = append(bySection[*atom.SectionID], mastery.AtomStat{
			AtomID:         atom.ID,
			Retrievability: atom.FSRS.Retrievability,
			Lapses:         atom.FSRS.Lapses,
			ReviewCount:    atom.FSRS.ReviewCount,
			Type:           atom.Type,
		})
	}
	return bySection, nil
}

func runCortexOptimize(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	atoms, err := a.store.ListAllScheduledAtoms(cmd.Context())
	if err != nil {
		return runtimeErr(err)
	}
	struggling := 0
	for _, atom := range atoms {
		if atom.FSRS.Lapses >= 2 {
			struggling++
		}
	}
	ratio := interleave.RemediationRatio(struggling)

	sessionSize := a.cfg.Interleave.SessionSize
	switch {
	case ratio >= 0.50 && sessionSize < 30:
		sessionSize += 5
	case ratio == 0 && sessionSize > 10:
		sessionSize -= 5
	}

	proposal := map[string]interface{}{
		"struggle_set_size":    struggling,
		"remediation_ratio":    ratio,
		"current_session_size": a.cfg.Interleave.SessionSize,
		"proposed_session_size": sessionSize,
		"plan_only":            true,
	}
	if output == "json" {
		return printJSON(cmd, proposal)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "struggle set: %d atom(s), remediation ratio %.2f\n", struggling, ratio)
	fmt.Fprintf(cmd.OutOrStdout(), "session size: %d -> %d (not applied — rerun with config changes to persist)\n",
		a.cfg.Interleave.SessionSize, sessionSize)
	return nil
}

func runCortexSuggest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	bySection, err := sectionStats(cmd, a)
	if err != nil {
		return runtimeErr(err)
	}

	type ranked struct {
		section string
		rollup  models.SectionMastery
	}
	var all []ranked
	for sec, stats := range bySection {
		all = append(all, ranked{sec, mastery.Aggregate(sec, studyLearnerID, stats, nil)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].rollup.RemediationScore > all[j].rollup.RemediationScore })
	if len(all) > 3 {
		all = all[:3]
	}

	if output == "json" {
		return printJSON(cmd, all)
	}
	t := cliformat.NewTable(cmd.OutOrStdout(), "SECTION", "REMEDIATION_SCORE", "NEEDS_REMEDIATION")
	for _, r := range all {
		t.AddRow(r.section, fmt.Sprintf("%.2f", r.rollup.RemediationScore), fmt.Sprint(r.rollup.NeedsRemediation))
	}
	return t.Render()
}

func runCortexRead(cmd *cobra.Command, args []string) error {
	section := args[0]
	if cortexSection != "" {
		section = cortexSection
	}
	studySection = section
	return runStudyStats(cmd, nil)
}
