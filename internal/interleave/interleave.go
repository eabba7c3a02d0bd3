// Package interleave implements the Interleaver (§4.J): builds a
// study-session queue from a candidate pool, a struggle set, quotas,
// and a due-reviews-first priority.
package interleave

import (
	"sort"

	"github.com/atomsync/atomsync/internal/models"
)

// Candidate is one atom eligible for the session queue.
type Candidate struct {
	AtomID   string
	Type     models.AtomType
	IsDue    bool
	IsNew    bool
	InStruggleSet bool
}

// Quota is a target share with a content-permitting minimum (§4.J).
type Quota struct {
	Target  float64
	Minimum int
}

// Config carries the session-shaping parameters (§6.5).
type Config struct {
	SessionSize int
	Quotas      map[models.AtomType]Quota
	WarMode     bool
}

// DefaultQuotas matches spec.md's evidence defaults.
func DefaultQuotas() map[models.AtomType]Quota {
	return map[models.AtomType]Quota{
		models.AtomMCQ:      {Target: 0.35, Minimum: 2},
		models.AtomTrueFalse: {Target: 0.25, Minimum: 2},
		models.AtomParsons:  {Target: 0.25, Minimum: 2},
		models.AtomMatching: {Target: 0.15, Minimum: 1},
	}
}

// RemediationRatio computes ρ from the struggle-set size (§4.J step 1).
func RemediationRatio(struggleSetSize int) float64 {
	switch {
	case struggleSetSize == 0:
		return 0
	case struggleSetSize <= 2:
		return 0.30
	case struggleSetSize <= 5:
		return 0.40
	default:
		return 0.50
	}
}

// Build produces the session queue (§4.J).
func Build(cfg Config, pool []Candidate) []Candidate {
	if cfg.WarMode {
		return buildWarMode(cfg, pool)
	}

	n := cfg.SessionSize
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	var due, remediation, fresh []Candidate
	for _, c := range pool {
		switch {
		case c.IsDue:
			due = append(due, c)
		case c.InStruggleSet:
			remediation = append(remediation, c)
		default:
			fresh = append(fresh, c)
		}
	}

	ratio := RemediationRatio(len(remediation))
	if ratio > 0.50 {
		ratio = 0.50
	}

	var selected []Candidate
	selected = appendUpTo(selected, due, n)

	remaining := n - len(selected)
	if remaining > 0 {
		remediationSlots := int(float64(remaining) * ratio)
		if remediationSlots > len(remediation) {
			remediationSlots = len(remediation)
		}
		freshSlots := remaining - remediationSlots

		selected = append(selected, apportionByType(remediation, remediationSlots, cfg.Quotas)...)
		selected = append(selected, apportionByType(fresh, freshSlots, cfg.Quotas)...)

		// Backfill from whichever pool still has candidates if quotas
		// of either bucket ran dry before filling the session.
		if len(selected) < n {
			selected = appendUpTo(selected, fresh, n)
		}
		if len(selected) < n {
			selected = appendUpTo(selected, remediation, n)
		}
	}

	selected = enforceTypeQuotas(selected, cfg.Quotas, pool, n)
	return interleaveTypes(selected)
}

// apportionByType picks `count` candidates from src, split across types
// by the configured target shares (largest-remainder rounding), falling
// back to pool order when no quotas are configured.
func apportionByType(src []Candidate, count int, quotas map[models.AtomType]Quota) []Candidate {
	if count <= 0 || len(src) == 0 {
		return nil
	}
	if len(quotas) == 0 {
		return appendUpTo(nil, src, count)
	}

	byType := make(map[models.AtomType][]Candidate)
	for _, c := range src {
		byType[c.Type] = append(byType[c.Type], c)
	}

	type share struct {
		t    models.AtomType
		want float64
		take int
	}
	shares := make([]share, 0, len(quotas))
	assigned := 0
	for t, q := range quotas {
		want := q.Target * float64(count)
		take := int(want)
		if take > len(byType[t]) {
			take = len(byType[t])
		}
		shares = append(shares, share{t: t, want: want, take: take})
		assigned += take
	}

	// Distribute the rounding remainder to the largest fractional parts,
	// capped by each type's available candidates, cycling until the
	// target count is met or every type is exhausted.
	sort.SliceStable(shares, func(i, j int) bool {
		return (shares[i].want - float64(int(shares[i].want))) > (shares[j].want - float64(int(shares[j].want)))
	})
	for assigned < count {
		progressed := false
		for i := range shares {
			if assigned >= count {
				break
			}
			if shares[i].take < len(byType[shares[i].t]) {
				shares[i].take++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	var selected []Candidate
	for _, s := range shares {
		selected = appendUpTo(selected, byType[s.t], len(selected)+s.take)
	}

	// Any slots still unmet (all quota'd types exhausted) pull from
	// whatever type has leftover candidates.
	if len(selected) < count {
		usedIDs := make(map[string]bool, len(selected))
		for _, c := range selected {
			usedIDs[c.AtomID] = true
		}
		for _, c := range src {
			if len(selected) >= count {
				break
			}
			if !usedIDs[c.AtomID] {
				selected = append(selected, c)
				usedIDs[c.AtomID] = true
			}
		}
	}
	return selected
}

func appendUpTo(dst, src []Candidate, limit int) []Candidate {
	for _, c := range src {
		if len(dst) >= limit {
			break
		}
		dst = append(dst, c)
	}
	return dst
}

// enforceTypeQuotas nudges the selected set toward the configured type
// targets and minimums, backfilling shortfall with MCQ candidates from
// the full pool (§4.J step 4).
func enforceTypeQuotas(selected []Candidate, quotas map[models.AtomType]Quota, pool []Candidate, n int) []Candidate {
	if len(quotas) == 0 || n == 0 {
		return selected
	}
	minSum := 0
	for _, q := range quotas {
		minSum += q.Minimum
	}
	if minSum > n {
		// Minimums are only meaningful once the session is large enough
		// to hold every type's minimum; smaller sessions keep the
		// selection as it is, with neither the top-up nor the
		// MCQ-preferring backfill below.
		return selected
	}

	counts := make(map[models.AtomType]int)
	for _, c := range selected {
		counts[c.Type]++
	}

	byType := make(map[models.AtomType][]Candidate)
	used := make(map[string]bool)
	for _, c := range selected {
		used[c.AtomID] = true
	}
	for _, c := range pool {
		byType[c.Type] = append(byType[c.Type], c)
	}

	// Top up minimums where the pool has unused content of that type.
	for t, q := range quotas {
		for counts[t] < q.Minimum {
			added := false
			for _, cand := range byType[t] {
				if used[cand.AtomID] {
					continue
				}
				if len(selected) >= n {
					// Swap out the most over-represented type to make room.
					victim := mostOverrepresented(counts, quotas, n)
					if victim == "" {
						break
					}
					selected = removeOneOfType(selected, victim)
					counts[victim]--
				}
				selected = append(selected, cand)
				used[cand.AtomID] = true
				counts[t]++
				added = true
				break
			}
			if !added {
				break
			}
		}
	}

	// Shortfalls that still can't be met backfill preferring MCQ.
	for len(selected) < n {
		cand, ok := firstUnused(byType[models.AtomMCQ], used)
		if !ok {
			cand, ok = firstUnusedAny(pool, used)
			if !ok {
				break
			}
		}
		selected = append(selected, cand)
		used[cand.AtomID] = true
	}

	return selected
}

func mostOverrepresented(counts map[models.AtomType]int, quotas map[models.AtomType]Quota, n int) models.AtomType {
	var best models.AtomType
	bestExcess := 0.0
	for t, c := range counts {
		target := quotas[t].Target * float64(n)
		excess := float64(c) - target
		if excess > bestExcess {
			bestExcess = excess
			best = t
		}
	}
	return best
}

// removeOneOfType evicts one candidate of type t, preferring a fresh
// (non-due, non-remediation) one so quota top-ups never bump a due or
// struggling item out of the session.
func removeOneOfType(selected []Candidate, t models.AtomType) []Candidate {
	for i, c := range selected {
		if c.Type == t && !c.IsDue && !c.InStruggleSet {
			return append(selected[:i], selected[i+1:]...)
		}
	}
	for i, c := range selected {
		if c.Type == t {
			return append(selected[:i], selected[i+1:]...)
		}
	}
	return selected
}

func firstUnused(cands []Candidate, used map[string]bool) (Candidate, bool) {
	for _, c := range cands {
		if !used[c.AtomID] {
			return c, true
		}
	}
	return Candidate{}, false
}

func firstUnusedAny(cands []Candidate, used map[string]bool) (Candidate, bool) {
	return firstUnused(cands, used)
}

// interleaveTypes reshuffles the selection round-robin over type
// buckets so no three consecutive entries share a type when an
// alternative exists (§4.J step 5, P7).
func interleaveTypes(selected []Candidate) []Candidate {
	buckets := make(map[models.AtomType][]Candidate)
	var order []models.AtomType
	for _, c := range selected {
		if _, ok := buckets[c.Type]; !ok {
			order = append(order, c.Type)
		}
		buckets[c.Type] = append(buckets[c.Type], c)
	}
	// Largest bucket first keeps round-robin from starving it early.
	sort.SliceStable(order, func(i, j int) bool {
		return len(buckets[order[i]]) > len(buckets[order[j]])
	})

	out := make([]Candidate, 0, len(selected))
	lastType := models.AtomType("")
	consecutive := 0
	for len(out) < len(selected) {
		placed := false
		for _, t := range order {
			if len(buckets[t]) == 0 {
				continue
			}
			if t == lastType && consecutive >= 2 && hasAlternative(buckets, t) {
				continue
			}
			out = append(out, buckets[t][0])
			buckets[t] = buckets[t][1:]
			if t == lastType {
				consecutive++
			} else {
				consecutive = 1
			}
			lastType = t
			placed = true
			break
		}
		if !placed {
			// every remaining bucket is the same type as lastType.
			for _, t := range order {
				for len(buckets[t]) > 0 {
					out = append(out, buckets[t][0])
					buckets[t] = buckets[t][1:]
				}
			}
		}
	}
	return out
}

func hasAlternative(buckets map[models.AtomType][]Candidate, exclude models.AtomType) bool {
	for t, b := range buckets {
		if t != exclude && len(b) > 0 {
			return true
		}
	}
	return false
}

// buildWarMode bypasses quotas, selecting purely by weakness signal —
// struggle-set and due items first, in pool order, then the remaining
// candidates (§4.J step 6). Weak items are not ranked against each
// other.
func buildWarMode(cfg Config, pool []Candidate) []Candidate {
	n := cfg.SessionSize
	weak := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if c.IsDue || c.InStruggleSet {
			weak = append(weak, c)
		}
	}
	if len(weak) < n {
		for _, c := range pool {
			if !c.IsDue && !c.InStruggleSet {
				weak = append(weak, c)
			}
			if len(weak) >= n {
				break
			}
		}
	}
	if len(weak) > n {
		weak = weak[:n]
	}
	return weak
}
