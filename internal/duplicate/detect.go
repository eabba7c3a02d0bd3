// Package duplicate implements the Duplicate Detector (§4.F): exact,
// fuzzy, and semantic-with-fallback matching that produces
// DuplicateGroups without ever mutating the atoms themselves.
package duplicate

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/atomsync/atomsync/internal/models"
)

// Method is re-exported for callers that only import this package.
type Method = models.DetectionMethod

// Candidate is the minimal atom projection the detector needs.
type Candidate struct {
	AtomID     string
	Front      string
	Back       string
	SectionID  string
	ConceptIDs []string
}

var punctRe = regexp.MustCompile(`[^\w\s]`)
var spaceRe = regexp.MustCompile(`\s+`)

// normalize lower-cases, strips punctuation, and collapses whitespace
// (§4.F "exact" definition).
func normalize(s string) string {
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExactHash returns the hash key for exact-duplicate grouping.
func ExactHash(front, back string) string {
	sum := sha256.Sum256([]byte(normalize(front) + "|" + normalize(back)))
	return hex.EncodeToString(sum[:])
}

// FindExact groups candidates sharing an identical normalized
// (front, back) hash.
func FindExact(candidates []Candidate) []models.DuplicateGroup {
	buckets := make(map[string][]string)
	for _, c := range candidates {
		h := ExactHash(c.Front, c.Back)
		buckets[h] = append(buckets[h], c.AtomID)
	}

	var groups []models.DuplicateGroup
	for _, ids := range buckets {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		groups = append(groups, models.DuplicateGroup{
			AtomIDs:    ids,
			Method:     models.MethodExact,
			Similarity: 1.0,
			Status:     models.DuplicateOpen,
		})
	}
	return groups
}

// Similarity computes normalized Levenshtein similarity in [0,1] over
// the concatenation of front+back, using agnivade/levenshtein for edit
// distance (1 - distance/max(len(a),len(b))).
func Similarity(a, b Candidate) float64 {
	sa := normalize(a.Front) + " " + normalize(a.Back)
	sb := normalize(b.Front) + " " + normalize(b.Back)
	if sa == sb {
		return 1.0
	}
	maxLen := len(sa)
	if len(sb) > maxLen {
		maxLen = len(sb)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(sa, sb)
	sim := 1.0 - float64(dist)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return sim
}

// blockKey buckets candidates so fuzzy comparison stays near-linear on
// large sets (§4.F target: <5min/50k atoms). Blocks by section, first
// concept, and first word hash.
func blockKey(c Candidate) string {
	firstWord := ""
	if fields := strings.Fields(normalize(c.Front)); len(fields) > 0 {
		firstWord = fields[0]
	}
	concept := ""
	if len(c.ConceptIDs) > 0 {
		concept = c.ConceptIDs[0]
	}
	return c.SectionID + "|" + concept + "|" + firstWord
}

// FindFuzzy compares candidates within the same block and groups pairs
// at or above threshold (default 0.85, §4.F). Excluded from
// consideration: atoms already in an open group (callers filter those
// out before calling, via store.AtomInOpenGroup).
func FindFuzzy(candidates []Candidate, threshold float64) []models.DuplicateGroup {
	blocks := make(map[string][]Candidate)
	for _, c := range candidates {
		k := blockKey(c)
		blocks[k] = append(blocks[k], c)
	}

	// union-find merges transitively similar atoms into one group,
	// satisfying duplicate symmetry (P4) without pairwise duplication.
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra > rb {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}
	for _, c := range candidates {
		parent[c.AtomID] = c.AtomID
	}

	simByPair := make(map[[2]string]float64)
	for _, bucket := range blocks {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				sim := Similarity(bucket[i], bucket[j])
				if sim >= threshold {
					union(bucket[i].AtomID, bucket[j].AtomID)
					key := pairKey(bucket[i].AtomID, bucket[j].AtomID)
					if sim > simByPair[key] {
						simByPair[key] = sim
					}
				}
			}
		}
	}

	groupsByRoot := make(map[string][]string)
	for _, c := range candidates {
		root := find(c.AtomID)
		groupsByRoot[root] = append(groupsByRoot[root], c.AtomID)
	}

	var out []models.DuplicateGroup
	for _, ids := range groupsByRoot {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		bestSim := 0.0
		for k, sim := range simByPair {
			if contains(ids, k[0]) && contains(ids, k[1]) && sim > bestSim {
				bestSim = sim
			}
		}
		out = append(out, models.DuplicateGroup{
			AtomIDs:    ids,
			Method:     models.MethodFuzzy,
			Similarity: bestSim,
			Status:     models.DuplicateOpen,
		})
	}
	return out
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Canonical picks the deterministic canonical atom for a group: the
// lower atom_id (§4.F tie-break rule).
func Canonical(group models.DuplicateGroup) string {
	ids := append([]string(nil), group.AtomIDs...)
	sort.Strings(ids)
	return ids[0]
}
