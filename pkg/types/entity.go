package types

import "time"

// EntityType enumerates the entity kinds spec.md recognizes.
type EntityType string

const (
	EntityTypePerson     EntityType = "person"
	EntityTypeProject    EntityType = "project"
	EntityTypeTechnology EntityType = "technology"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeConcept    EntityType = "concept"
)

// ValidEntityTypes lists all recognized entity types.
var ValidEntityTypes = []EntityType{
	EntityTypePerson, EntityTypeProject, EntityTypeTechnology,
	EntityTypeOrganization, EntityTypeConcept,
}

// IsValidEntityType reports whether t is a recognized entity type.
func IsValidEntityType(t string) bool {
	for _, v := range ValidEntityTypes {
		if string(v) == t {
			return true
		}
	}
	return false
}

// Entity is a named thing extracted from memories (person, project,
// technology, organization, concept). Lookup by name is case-insensitive.
type Entity struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      EntityType             `json:"type"`
	Aliases   []string               `json:"aliases,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// MemoryEntity is the many-to-many join between memories and entities.
// Relevance is in [0,1]; re-linking the same pair upserts keeping the
// higher relevance.
type MemoryEntity struct {
	MemoryID  string    `json:"memory_id"`
	EntityID  string    `json:"entity_id"`
	Relevance float64   `json:"relevance"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityRelationship is a labeled (source, target, label) triple between two
// entities. Duplicate triples are rejected silently.
type EntityRelationship struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	Relationship string    `json:"relationship"`
	Confidence   float64   `json:"confidence"`
	MemoryID     string    `json:"memory_id,omitempty"`
	Context      string    `json:"context,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MemoryLinkType enumerates directed memory-to-memory link kinds.
type MemoryLinkType string

const (
	LinkRelated     MemoryLinkType = "related"
	LinkElaborates  MemoryLinkType = "elaborates"
	LinkContradicts MemoryLinkType = "contradicts"
	LinkSupersedes  MemoryLinkType = "supersedes"
	LinkSupports    MemoryLinkType = "supports"
	LinkDerivedFrom MemoryLinkType = "derived_from"
)

// MemoryLink is a directed edge between two memories with a strength in
// [0,1]. Stored directed; queried symmetrically (a lookup for id X returns
// edges where X is either endpoint). Distinct ordered pairs only; duplicate
// inserts upsert the link.
type MemoryLink struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	TargetID  string         `json:"target_id"`
	LinkType  MemoryLinkType `json:"link_type"`
	Strength  float64        `json:"strength"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LinkedRef is a neighbor returned by get_linked_refs: the maximum-strength
// reference to memoryID, across either link direction, sorted by strength
// descending by the caller.
type LinkedRef struct {
	MemoryID string
	Strength float64
	LinkType MemoryLinkType
}
