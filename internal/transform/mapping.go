// Package transform implements the Transform stage (§4.D): mapping raw
// staging records onto canonical atoms via a collection-specific
// mapping table, idempotent on (source, source_ref).
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atomsync/atomsync/internal/models"
)

// FieldMap names the staging-payload keys a collection's front/back/type
// live under — the "collection-specific mapping table" of §6.x. Notion
// rows carry Notion property names (e.g. "Front", "Back", "Type");
// AnkiConnect rows carry note field names (e.g. "Front", "Back").
type FieldMap struct {
	FrontField string
	BackField  string
	TypeField  string // empty means always DefaultType
}

// Config is one collection's full mapping table.
type Config struct {
	Collection           string
	Kind                 models.AtomSource // SourceNotion or SourceAnki
	Fields               FieldMap
	DefaultType          models.AtomType
	TypeAliases          map[string]models.AtomType // raw type string -> AtomType
	DefaultKnowledgeType models.KnowledgeType
	SectionID            *string
	ConceptIDs           []string
}

// notionProperty mirrors the small slice of the Notion property schema
// this mapping table understands: rich_text and select properties.
type notionProperty struct {
	RichText []struct {
		PlainText string `json:"plain_text"`
	} `json:"rich_text"`
	Select *struct {
		Name string `json:"name"`
	} `json:"select"`
	Relation []struct {
		ID string `json:"id"`
	} `json:"relation"`
}

// ankiPayload mirrors internal/sync's noteJSON output.
type ankiPayload struct {
	NoteID    int64             `json:"note_id"`
	ModelName string            `json:"model_name"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
}

// extractField reads the front/back/type text for one staging payload
// according to cfg's mapping table. An absent field yields an empty
// string, not an error (mapAtom turns an empty front or back into a skip
// warning); errors come only from an undecodable payload or an
// unsupported source kind.
func extractField(cfg Config, payload json.RawMessage, field string) (string, error) {
	if field == "" {
		return "", nil
	}
	switch cfg.Kind {
	case models.SourceNotion:
		var props map[string]notionProperty
		if err := json.Unmarshal(payload, &props); err != nil {
			return "", fmt.Errorf("transform: decode notion properties: %w", err)
		}
		p, ok := props[field]
		if !ok {
			return "", nil
		}
		if p.Select != nil {
			return p.Select.Name, nil
		}
		var parts []string
		for _, rt := range p.RichText {
			parts = append(parts, rt.PlainText)
		}
		return strings.Join(parts, ""), nil
	case models.SourceAnki:
		var note ankiPayload
		if err := json.Unmarshal(payload, &note); err != nil {
			return "", fmt.Errorf("transform: decode anki note: %w", err)
		}
		return note.Fields[field], nil
	default:
		return "", fmt.Errorf("transform: unsupported source kind %q", cfg.Kind)
	}
}

// extractConceptIDs resolves a Notion relation property (or the fixed
// ConceptIDs on cfg for Anki, which has no relation concept) into the
// set of related concept ids (§4.D "relation resolution").
func extractConceptIDs(cfg Config, payload json.RawMessage) ([]string, error) {
	if cfg.Kind != models.SourceNotion {
		return cfg.ConceptIDs, nil
	}
	var props map[string]notionProperty
	if err := json.Unmarshal(payload, &props); err != nil {
		return nil, fmt.Errorf("transform: decode notion properties: %w", err)
	}
	p, ok := props["Concepts"]
	if !ok || len(p.Relation) == 0 {
		return cfg.ConceptIDs, nil
	}
	ids := make([]string, len(p.Relation))
	for i, r := range p.Relation {
		ids[i] = r.ID
	}
	return ids, nil
}

func resolveType(cfg Config, raw string) models.AtomType {
	if raw == "" {
		return cfg.DefaultType
	}
	if t, ok := cfg.TypeAliases[raw]; ok {
		return t
	}
	if t := models.AtomType(raw); isKnownAtomType(t) {
		return t
	}
	return cfg.DefaultType
}

func isKnownAtomType(t models.AtomType) bool {
	switch t {
	case models.AtomFlashcard, models.AtomCloze, models.AtomMCQ, models.AtomTrueFalse,
		models.AtomMatching, models.AtomParsons, models.AtomNumeric:
		return true
	default:
		return false
	}
}
