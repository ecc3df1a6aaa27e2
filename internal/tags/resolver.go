// Package tags merges labels from several sources into one label per address and
// holds the process-wide tag cache.
package tags

import (
	"github.com/jonathan/addrlens/internal/types"
)

// DefaultCanonicalSource is the entity-aware importer whose labels win the headline slot.
const DefaultCanonicalSource = "arkham"

// Resolver picks the displayed label for an address from all of its records.
type Resolver struct {
	CanonicalSource string
}

// NewResolver creates a Resolver; an empty source falls back to DefaultCanonicalSource.
func NewResolver(canonicalSource string) Resolver {
	if canonicalSource == "" {
		canonicalSource = DefaultCanonicalSource
	}
	return Resolver{CanonicalSource: canonicalSource}
}

// Resolve computes the headline label from records in arrival order.
// Records for the canonical source take precedence. Otherwise the source of the most
// recent record is used. Within the chosen source a later name replaces an earlier one,
// and an entity, once set, survives later records that carry none.
func (r Resolver) Resolve(addr types.Address, records []types.TagRecord) (types.ResolvedTag, bool) {
	source := ""
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Address != addr || rec.Name == "" {
			continue
		}
		if rec.Source == r.CanonicalSource {
			source = rec.Source
			break
		}
		if source == "" {
			source = rec.Source
		}
	}
	if source == "" {
		return types.ResolvedTag{}, false
	}

	var tag types.ResolvedTag
	for _, rec := range records {
		if rec.Address != addr || rec.Source != source || rec.Name == "" {
			continue
		}
		tag.Name = rec.Name
		if rec.Entity != "" {
			tag.Entity = rec.Entity
		}
	}
	return tag, true
}

// ResolveAll groups records by address and resolves each group.
func (r Resolver) ResolveAll(records []types.TagRecord) map[types.Address]types.ResolvedTag {
	grouped := make(map[types.Address][]types.TagRecord)
	for _, rec := range records {
		grouped[rec.Address] = append(grouped[rec.Address], rec)
	}
	out := make(map[types.Address]types.ResolvedTag, len(grouped))
	for addr, recs := range grouped {
		if tag, ok := r.Resolve(addr, recs); ok {
			out[addr] = tag
		}
	}
	return out
}
