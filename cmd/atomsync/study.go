package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atomsync/atomsync/internal/cliformat"
	"github.com/atomsync/atomsync/internal/fsrs"
	"github.com/atomsync/atomsync/internal/interleave"
	"github.com/atomsync/atomsync/internal/mastery"
	"github.com/atomsync/atomsync/internal/models"
)

var (
	studyLearnerID = "default"
	studySection   string
	studyWarMode   bool
	studySize      int
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Run and inspect study sessions",
}

var studyTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Alias for 'study start': build and print today's session queue",
	RunE:  runStudyStart,
}

var studyStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Build a study-session queue from due and struggling atoms",
	RunE:  runStudyStart,
}

var studyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print mastery rollup for a section",
	RunE:  runStudyStats,
}

var studyModuleCmd = &cobra.Command{
	Use:   "module <n>",
	Short: "Print mastery rollup for section <n> (alias of 'study stats --section')",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudyModule,
}

var studyPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show every section with outstanding due atoms, in curriculum order",
	RunE:  runStudyPath,
}

var studySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh study state from Anki before a session (alias of 'sync anki-pull')",
	RunE:  runSyncAnkiPull,
}

var studyRemediationCmd = &cobra.Command{
	Use:   "remediation",
	Short: "Build a remediation-only session from the struggle set (war mode, forced)",
	RunE:  runStudyRemediation,
}

func init() {
	studyCmd.PersistentFlags().StringVar(&studyLearnerID, "learner", "default", "learner ID")
	studyCmd.PersistentFlags().StringVar(&studySection, "section", "", "restrict to one section (default: all sections with due atoms)")
	studyStartCmd.Flags().BoolVar(&studyWarMode, "war-mode", false, "bypass quotas, select purely by weakness signal")
	studyStartCmd.Flags().IntVar(&studySize, "size", 0, "session size (default: interleave.session_size from config)")
	studyTodayCmd.Flags().BoolVar(&studyWarMode, "war-mode", false, "bypass quotas, select purely by weakness signal")
	studyTodayCmd.Flags().IntVar(&studySize, "size", 0, "session size (default: interleave.session_size from config)")
	studyRemediationCmd.Flags().IntVar(&studySize, "size", 0, "session size (default: interleave.session_size from config)")
	studyCmd.AddCommand(studyTodayCmd, studyStartCmd, studyStatsCmd, studyModuleCmd, studyPathCmd, studySyncCmd, studyRemediationCmd)
	rootCmd.AddCommand(studyCmd)
}

// sectionIDsFor returns the single requested section, or nil (meaning
// "every section") when none was given.
func sectionIDsFor() []string {
	if studySection == "" {
		return nil
	}
	return []string{studySection}
}

// candidatesFromAtoms projects the due/scheduled atom pool into
// interleave.Candidate, marking struggle-set membership from each
// atom's current lapse count (§4.J "struggle set").
func candidatesFromAtoms(atoms []models.Atom) []interleave.Candidate {
	out := make([]interleave.Candidate, 0, len(atoms))
	now := time.Now().UTC()
	sched := fsrs.New(fsrs.DefaultConfig())
	for _, a := range atoms {
		if !a.Scheduled() {
			continue
		}
		due := sched.IsDue(a.FSRS, now)
		out = append(out, interleave.Candidate{
			AtomID:        a.ID,
			Type:          a.Type,
			IsDue:         due,
			IsNew:         a.FSRS.ReviewCount == 0,
			InStruggleSet: a.FSRS.Lapses >= 2,
		})
	}
	return out
}

func runStudyStart(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	atoms, err := a.store.ListDueAtoms(cmd.Context(), sectionIDsFor())
	if err != nil {
		return runtimeErr(err)
	}

	size := studySize
	if size <= 0 {
		size = a.cfg.Interleave.SessionSize
	}
	cfg := interleave.Config{
		SessionSize: size,
		Quotas:      interleave.DefaultQuotas(),
		WarMode:     studyWarMode,
	}

	queue := interleave.Build(cfg, candidatesFromAtoms(atoms))
	sessionID := uuid.NewString()

	if output == "json" {
		return printJSON(cmd, map[string]interface{}{"session_id": sessionID, "queue": queue})
	}
	t := cliformat.NewTable(cmd.OutOrStdout(), "#", "ATOM", "TYPE", "DUE", "STRUGGLING")
	for i, c := range queue {
		t.AddRow(fmt.Sprint(i+1), c.AtomID, string(c.Type), fmt.Sprint(c.IsDue), fmt.Sprint(c.InStruggleSet))
	}
	if err := t.Render(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nsession %s: %d item(s)\n", sessionID, len(queue))
	return nil
}

func runStudyStats(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if studySection == "" {
		return usageErr(fmt.Errorf("study stats requires --section"))
	}

	atoms, err := a.store.ListAtomsBySection(cmd.Context(), studySection)
	if err != nil {
		return runtimeErr(err)
	}
	responses, err := a.store.ListResponsesForSection(cmd.Context(), studyLearnerID, studySection)
	if err != nil {
		return runtimeErr(err)
	}

	stats := make([]mastery.AtomStat, 0, len(atoms))
	for _, atom := range atoms {
		if !atom.Scheduled() {
			continue
		}
		stats = append(stats, mastery.AtomStat{
			AtomID:         atom.ID,
			Retrievability: atom.FSRS.Retrievability,
			Lapses:         atom.FSRS.Lapses,
			ReviewCount:    atom.FSRS.ReviewCount,
			Type:           atom.Type,
		})
	}
	outcomes := make([]mastery.ResponseOutcome, 0, len(responses))
	byID := make(map[string]models.AtomType, len(atoms))
	for _, atom := range atoms {
		byID[atom.ID] = atom.Type
	}
	for _, r := range responses {
		outcomes = append(outcomes, mastery.ResponseOutcome{AtomID: r.AtomID, Type: byID[r.AtomID], IsCorrect: r.IsCorrect})
	}

	result := mastery.Aggregate(studySection, studyLearnerID, stats, outcomes)
	return printJSON(cmd, result)
}

func runStudyModule(cmd *cobra.Command, args []string) error {
	studySection = args[0]
	return runStudyStats(cmd, nil)
}

func runStudyPath(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	atoms, err := a.store.ListDueAtoms(cmd.Context(), nil)
	if err != nil {
		return runtimeErr(err)
	}

	counts := make(map[string]int)
	var order []string
	for _, atom := range atoms {
		if atom.SectionID == nil {
			continue
		}
		sec := *atom.SectionID
		if _, ok := counts[sec]; !ok {
			order = append(order, sec)
		}
		counts[sec]++
	}

	if output == "json" {
		return printJSON(cmd, counts)
	}
	t := cliformat.NewTable(cmd.OutOrStdout(), "SECTION", "DUE_ATOMS")
	for _, sec := range order {
		t.AddRow(sec, fmt.Sprint(counts[sec]))
	}
	return t.Render()
}

func runStudyRemediation(cmd *cobra.Command, args []string) error {
	studyWarMode = true
	return runStudyStart(cmd, args)
}
