// Package orchestrator composes the cleaning pipeline (§4.L) into a
// single resumable job: Transform, a version-gated re-Analyze pass,
// Duplicate Detect, and an optional Rewrite enqueue, each recorded in
// the stage_log table so `--resume` can skip stages already done.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atomsync/atomsync/internal/duplicate"
	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
	"github.com/atomsync/atomsync/internal/rewrite"
	"github.com/atomsync/atomsync/internal/store"
	"github.com/atomsync/atomsync/internal/transform"
)

const (
	stageTransform = "transform"
	stageAnalyze   = "analyze"
	stageDetect    = "detect"
	stageRewrite   = "enqueue_rewrite"
)

// Options gates the pipeline's optional stages and run mode (§4.L,
// §6.3 `clean run`).
type Options struct {
	EnableRewrite bool
	MinGrade      models.QualityGrade // best grade enqueued for rewrite, along with every worse grade; default D
	DryRun        bool
	Resume        bool
	Force         bool // re-analyze every atom regardless of analyzer version
}

// Summary tallies one pipeline run across all its stages.
type Summary struct {
	TransformUpserted int
	TransformSkipped  int
	Reanalyzed        int
	DuplicateGroups   int
	RewriteEnqueued   int
	Warnings          []string
	Status            models.SyncStatus
}

// Pipeline wires the cleaning stages together over a shared store.
type Pipeline struct {
	store        *store.Store
	transform    *transform.Engine
	rewrite      *rewrite.Engine
	th           quality.Thresholds
	dupThreshold float64
	log          *slog.Logger
}

// New builds a Pipeline. rewriteEngine may be nil when no LLM is
// configured — EnableRewrite is then refused rather than silently
// skipped.
func New(st *store.Store, tr *transform.Engine, rw *rewrite.Engine, th quality.Thresholds, dupThreshold float64, log *slog.Logger) *Pipeline {
	return &Pipeline{store: st, transform: tr, rewrite: rw, th: th, dupThreshold: dupThreshold, log: log}
}

// Run executes Transform → Analyze → Detect → (optional) EnqueueRewrite
// → Summary for runID, skipping stages stage_log already marks done
// when opts.Resume is set (§4.L). A stage's fatal error aborts the run
// with status `failed`; per-item failures within a stage degrade the
// final status to `completed_with_warnings` without aborting.
func (p *Pipeline) Run(ctx context.Context, runID string, collections []transform.Config, opts Options) (Summary, error) {
	if opts.EnableRewrite && p.rewrite == nil {
		return Summary{}, fmt.Errorf("orchestrator: rewrite enabled but no LLM-backed rewrite engine configured")
	}
	if opts.MinGrade == "" {
		opts.MinGrade = models.GradeD
	}

	var sum Summary

	if err := p.runStage(ctx, runID, stageTransform, opts, func() error {
		for _, cfg := range collections {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result, err := p.transform.Run(ctx, cfg)
			if err != nil {
				return fmt.Errorf("transform %s: %w", cfg.Collection, err)
			}
			sum.TransformUpserted += result.Upserted
			sum.TransformSkipped += result.Skipped
			sum.Warnings = append(sum.Warnings, result.Warnings...)
		}
		return nil
	}); err != nil {
		sum.Status = models.SyncFailed
		return sum, err
	}

	if err := p.runStage(ctx, runID, stageAnalyze, opts, func() error {
		n, err := p.reanalyze(ctx, opts)
		sum.Reanalyzed = n
		return err
	}); err != nil {
		sum.Status = models.SyncFailed
		return sum, err
	}

	if err := p.runStage(ctx, runID, stageDetect, opts, func() error {
		n, err := p.detect(ctx, opts)
		sum.DuplicateGroups = n
		return err
	}); err != nil {
		sum.Status = models.SyncFailed
		return sum, err
	}

	if opts.EnableRewrite {
		if err := p.runStage(ctx, runID, stageRewrite, opts, func() error {
			n, warnings := p.enqueueRewrites(ctx, opts)
			sum.RewriteEnqueued = n
			sum.Warnings = append(sum.Warnings, warnings...)
			return nil
		}); err != nil {
			sum.Status = models.SyncFailed
			return sum, err
		}
	}

	if len(sum.Warnings) > 0 {
		sum.Status = models.SyncCompletedWithWarnings
	} else {
		sum.Status = models.SyncCompleted
	}
	return sum, nil
}

// runStage records stage_log start/end around fn, skipping entirely
// when opts.Resume is set and the stage already completed (§4.L).
func (p *Pipeline) runStage(ctx context.Context, runID, stage string, opts Options, fn func() error) error {
	if opts.Resume {
		done, err := p.store.StageDone(ctx, runID, stage)
		if err == nil && done {
			p.log.Info("orchestrator: skipping completed stage", "run_id", runID, "stage", stage)
			return nil
		}
	}
	if opts.DryRun {
		p.log.Info("orchestrator: dry-run, not executing stage", "run_id", runID, "stage", stage)
		return nil
	}

	if err := p.store.RecordStageStart(ctx, runID, stage); err != nil {
		return fmt.Errorf("orchestrator: record stage start %s: %w", stage, err)
	}
	if err := fn(); err != nil {
		_ = p.store.RecordStageEnd(ctx, runID, stage, models.StageFailed, err.Error())
		return err
	}
	if err := p.store.RecordStageEnd(ctx, runID, stage, models.StageDone, ""); err != nil {
		return fmt.Errorf("orchestrator: record stage end %s: %w", stage, err)
	}
	return nil
}

// reanalyze re-scores every atom whose analyzer_version doesn't match
// the current Analyzer, or every atom when opts.Force is set. A version
// change alone triggers re-scoring; it is not gated behind Force.
func (p *Pipeline) reanalyze(ctx context.Context, opts Options) (int, error) {
	atoms, err := p.store.ListAllScheduledAtoms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list atoms for re-analyze: %w", err)
	}

	n := 0
	for _, a := range atoms {
		if !opts.Force && a.AnalyzerVersion == quality.Version {
			continue
		}
		result := quality.Analyze(a.Front, a.Back, a.Type, p.th)
		a.QualityGrade = result.Grade
		a.QualityScore = result.Score
		a.QualityIssues = result.Issues
		a.AnalyzerVersion = quality.Version
		a.Flags.NeedsSplit = result.Flags.NeedsSplit
		a.Flags.NeedsRewrite = result.Flags.NeedsRewrite
		a.Flags.NeedsReview = result.Flags.NeedsReview
		a.Flags.IsVerbose = result.Flags.IsVerbose

		if err := p.store.UpsertAtom(ctx, &a); err != nil {
			return n, fmt.Errorf("re-analyze atom %s: %w", a.ID, err)
		}
		n++
	}
	return n, nil
}

// detect runs exact-then-fuzzy duplicate detection over every scheduled
// atom not already in an open group, persisting newly found groups
// (§4.F). Groups previously marked resolved are naturally excluded
// since only open groups' membership is checked here.
func (p *Pipeline) detect(ctx context.Context, opts Options) (int, error) {
	atoms, err := p.store.ListAllScheduledAtoms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list atoms for detect: %w", err)
	}

	candidates := make([]duplicate.Candidate, 0, len(atoms))
	for _, a := range atoms {
		inGroup, err := p.store.AtomInOpenGroup(ctx, a.ID)
		if err != nil {
			return 0, fmt.Errorf("check open group membership for %s: %w", a.ID, err)
		}
		if inGroup {
			continue
		}
		candidates = append(candidates, duplicate.Candidate{
			AtomID: a.ID, Front: a.Front, Back: a.Back, SectionID: derefSection(a.SectionID), ConceptIDs: a.ConceptIDs,
		})
	}

	groups := duplicate.FindExact(candidates)
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, id := range g.AtomIDs {
			seen[id] = true
		}
	}
	remaining := candidates[:0:0]
	for _, c := range candidates {
		if !seen[c.AtomID] {
			remaining = append(remaining, c)
		}
	}
	groups = append(groups, duplicate.FindFuzzy(remaining, p.dupThreshold)...)

	n := 0
	for _, g := range groups {
		g.ID = uuid.NewString()
		if err := p.store.CreateDuplicateGroup(ctx, &g); err != nil {
			return n, fmt.Errorf("create duplicate group: %w", err)
		}
		n++
	}
	return n, nil
}

// enqueueRewrites enqueues every atom at or below opts.MinGrade for
// rewrite, returning per-item warnings instead of aborting on a single
// atom's failure (§4.G "Rewriter/AI unavailable... pipeline continues").
func (p *Pipeline) enqueueRewrites(ctx context.Context, opts Options) (int, []string) {
	grades := gradesAtOrBelow(opts.MinGrade)
	atoms, err := p.store.ListAtomsByGrade(ctx, grades)
	if err != nil {
		return 0, []string{fmt.Sprintf("list atoms by grade: %v", err)}
	}

	var warnings []string
	n := 0
	for _, a := range atoms {
		if err := p.rewrite.ProcessAtom(ctx, &a); err != nil {
			warnings = append(warnings, fmt.Sprintf("rewrite atom %s: %v", a.ID, err))
			continue
		}
		n++
	}
	return n, warnings
}

func gradesAtOrBelow(min models.QualityGrade) []models.QualityGrade {
	ladder := []models.QualityGrade{models.GradeA, models.GradeB, models.GradeC, models.GradeD, models.GradeF}
	for i, g := range ladder {
		if g == min {
			return ladder[i:]
		}
	}
	return rewrite.MinGrade
}

func derefSection(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
