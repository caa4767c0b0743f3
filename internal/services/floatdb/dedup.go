package floatdb

import (
	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/models"
)

// Pending is one raw observation waiting to be persisted.
type Pending struct {
	Item  codec.RawItem
	Price *int64
}

// Normalized pairs an observation with its canonical row.
type Normalized struct {
	Raw   codec.RawItem
	Item  *models.Item
	Price *int64
}

// Deduplicate keeps the first observation per identity key and drops later ones.
// It only looks inside the batch; repeats across batches are resolved by the upsert.
func Deduplicate(batch []Normalized) (kept []Normalized, dropped int) {
	seen := make(map[string]struct{}, len(batch))
	kept = make([]Normalized, 0, len(batch))
	for _, n := range batch {
		key := codec.IdentityKey(n.Item)
		if _, ok := seen[key]; ok {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, n)
	}
	return kept, dropped
}
