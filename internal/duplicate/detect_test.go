package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindExactGroupsIdenticalPairs(t *testing.T) {
	candidates := []Candidate{
		{AtomID: "atom-2", Front: "What is TCP?", Back: "Transmission Control Protocol"},
		{AtomID: "atom-1", Front: "what is tcp?", Back: "transmission control protocol"},
		{AtomID: "atom-3", Front: "What is UDP?", Back: "User Datagram Protocol"},
	}
	groups := FindExact(candidates)
	assert.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"atom-1", "atom-2"}, groups[0].AtomIDs)
}

func TestFindFuzzyMatchesNearDuplicates(t *testing.T) {
	candidates := []Candidate{
		{AtomID: "a1", Front: "What is TCP?", Back: "Protocol", SectionID: "1"},
		{AtomID: "a2", Front: "What is TCP", Back: "Protocol", SectionID: "1"},
		{AtomID: "a3", Front: "What is gravity?", Back: "A force", SectionID: "1"},
	}
	groups := FindFuzzy(candidates, 0.85)
	assert.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a1", "a2"}, groups[0].AtomIDs)
}

func TestCanonicalPicksLowerAtomID(t *testing.T) {
	groups := FindExact([]Candidate{
		{AtomID: "z-atom", Front: "x", Back: "y"},
		{AtomID: "a-atom", Front: "x", Back: "y"},
	})
	assert.Equal(t, "a-atom", Canonical(groups[0]))
}
