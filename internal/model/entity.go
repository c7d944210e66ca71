package model

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind classifies the subject of knowledge
type EntityKind string

const (
	EntityArtist   EntityKind = "artist"
	EntityVenue    EntityKind = "venue"
	EntityLabel    EntityKind = "label"
	EntityGear     EntityKind = "gear"
	EntityFestival EntityKind = "festival"
	EntityCrew     EntityKind = "crew"
)

// ParseEntityKind parses a kind name, accepting plurals
func ParseEntityKind(raw string) (EntityKind, error) {
	k := EntityKind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s"))
	switch k {
	case EntityArtist, EntityVenue, EntityLabel, EntityGear, EntityFestival, EntityCrew:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind: %q", raw)
}

// Entity is a subject of knowledge owned by the ingestion side
type Entity struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	Kind      EntityKind `json:"kind"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// Ref returns the asset key for the entity
func (e Entity) Ref() EntityRef {
	return EntityRef{Kind: e.Kind, ID: e.ID}
}

// EntityRef identifies an entity by kind and id
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// RawDocument is an immutable piece of fetched source text
type RawDocument struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
	EntityIDs []string  `json:"entity_ids,omitempty"`
}
