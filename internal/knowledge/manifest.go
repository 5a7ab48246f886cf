package knowledge

// Manifest is a derivable index over all knowledge items at the current
// commit (spec §3.6, GLOSSARY "Manifest"). It is never hand-edited: it is
// regenerated from the item set for every commit and stored in that commit
// as its snapshot (spec §8.3).
type Manifest struct {
	TipCommitHash string
	ByID          map[string]ItemSummary
	ByLayer       map[Layer][]string
	ByType        map[Type][]string
	ByStatus      map[Status][]string
}

// ItemSummary is the byte-capped projection returned by query() (spec §4.2:
// "returns summaries only (no full content) to cap bytes").
type ItemSummary struct {
	ID          string
	Type        Type
	Layer       Layer
	Title       string
	Summary     string
	Status      Status
	Severity    Severity
	Tags        []string
	ContentHash string
}

// BuildManifest derives a fresh Manifest from the full item set and the tip
// commit hash. It is called for every commit rather than mutating a stored
// manifest incrementally. ReplayManifest verifies the commit hash chain and
// returns the stored tip snapshot; it does not rebuild the manifest from
// items, and the snapshot's content is not covered by the hash (spec §8.3).
func BuildManifest(items map[string]*Item, tipCommitHash string) Manifest {
	m := Manifest{
		TipCommitHash: tipCommitHash,
		ByID:          make(map[string]ItemSummary, len(items)),
		ByLayer:       make(map[Layer][]string),
		ByType:        make(map[Type][]string),
		ByStatus:      make(map[Status][]string),
	}
	for id, item := range items {
		m.ByID[id] = ItemSummary{
			ID:          item.ID,
			Type:        item.Type,
			Layer:       item.Layer,
			Title:       item.Title,
			Summary:     item.Summary,
			Status:      item.Status,
			Severity:    item.Severity,
			Tags:        item.Tags,
			ContentHash: item.ContentHash,
		}
		m.ByLayer[item.Layer] = append(m.ByLayer[item.Layer], id)
		m.ByType[item.Type] = append(m.ByType[item.Type], id)
		m.ByStatus[item.Status] = append(m.ByStatus[item.Status], id)
	}
	return m
}
