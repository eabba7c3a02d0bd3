package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
	"github.com/atomsync/atomsync/internal/store"
)

func notionCfg() Config {
	return Config{
		Collection:           "study-notes",
		Kind:                 models.SourceNotion,
		Fields:               FieldMap{FrontField: "Front", BackField: "Back", TypeField: "Type"},
		DefaultType:          models.AtomFlashcard,
		DefaultKnowledgeType: models.KnowledgeDeclarative,
	}
}

func ankiCfg() Config {
	return Config{
		Collection:           "default-deck",
		Kind:                 models.SourceAnki,
		Fields:               FieldMap{FrontField: "Front", BackField: "Back"},
		DefaultType:          models.AtomFlashcard,
		DefaultKnowledgeType: models.KnowledgeDeclarative,
	}
}

func newEngine() *Engine {
	return New(nil, nil, quality.DefaultThresholds(), quality.ModeRelaxed)
}

func TestExtractFieldNotionRichText(t *testing.T) {
	payload := json.RawMessage(`{
		"Front": {"rich_text": [{"plain_text": "What is "}, {"plain_text": "Go?"}]},
		"Type": {"select": {"name": "flashcard"}}
	}`)
	front, err := extractField(notionCfg(), payload, "Front")
	require.NoError(t, err)
	assert.Equal(t, "What is Go?", front)

	typ, err := extractField(notionCfg(), payload, "Type")
	require.NoError(t, err)
	assert.Equal(t, "flashcard", typ)
}

func TestExtractFieldAnki(t *testing.T) {
	payload := json.RawMessage(`{"note_id":1,"model_name":"Basic","fields":{"Front":"Q","Back":"A"},"tags":[]}`)
	front, err := extractField(ankiCfg(), payload, "Front")
	require.NoError(t, err)
	assert.Equal(t, "Q", front)
}

func TestExtractConceptIDsFromNotionRelation(t *testing.T) {
	payload := json.RawMessage(`{"Concepts": {"relation": [{"id": "c1"}, {"id": "c2"}]}}`)
	ids, err := extractConceptIDs(notionCfg(), payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestResolveTypeAliasAndFallback(t *testing.T) {
	cfg := notionCfg()
	cfg.TypeAliases = map[string]models.AtomType{"quiz": models.AtomMCQ}

	assert.Equal(t, models.AtomMCQ, resolveType(cfg, "quiz"))
	assert.Equal(t, models.AtomTrueFalse, resolveType(cfg, "true_false"))
	assert.Equal(t, cfg.DefaultType, resolveType(cfg, "nonsense"))
	assert.Equal(t, cfg.DefaultType, resolveType(cfg, ""))
}

func TestMapAtomSkipsEmptyBack(t *testing.T) {
	e := newEngine()
	item := store.StagingItem{
		ExternalID: "page-1",
		Payload:    json.RawMessage(`{"Front": {"rich_text": [{"plain_text": "Q"}]}, "Back": {"rich_text": []}}`),
	}
	atom, warning, err := e.mapAtom(notionCfg(), item, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, atom)
	assert.Contains(t, warning, "empty back")
}

func TestMapAtomProducesCanonicalAtom(t *testing.T) {
	e := newEngine()
	item := store.StagingItem{
		ExternalID: "note-7",
		Payload:    json.RawMessage(`{"note_id":7,"model_name":"Basic","fields":{"Front":"What is Go?","Back":"A language."},"tags":[]}`),
	}
	atom, warning, err := e.mapAtom(ankiCfg(), item, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, warning)
	require.NotNil(t, atom)
	assert.Equal(t, "What is Go?", atom.Front)
	assert.Equal(t, models.SourceAnki, atom.Source)
	assert.Equal(t, "note-7", atom.SourceRef)
	assert.Equal(t, models.GradeA, atom.QualityGrade)
}

func TestMapAtomIsDeterministic(t *testing.T) {
	e := newEngine()
	item := store.StagingItem{
		ExternalID: "note-8",
		Payload:    json.RawMessage(`{"note_id":8,"model_name":"Basic","fields":{"Front":"What is Go?","Back":"A language."},"tags":[]}`),
	}
	now := time.Now().UTC()
	a1, _, err := e.mapAtom(ankiCfg(), item, now)
	require.NoError(t, err)
	a2, _, err := e.mapAtom(ankiCfg(), item, now)
	require.NoError(t, err)

	assert.Equal(t, a1.Front, a2.Front)
	assert.Equal(t, a1.Back, a2.Back)
	assert.Equal(t, a1.QualityGrade, a2.QualityGrade)
	assert.Equal(t, a1.QualityScore, a2.QualityScore)
	assert.Equal(t, a1.SourceRef, a2.SourceRef)
}
