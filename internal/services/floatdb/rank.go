package floatdb

import (
	"context"

	"csgo-floatdb/internal/store"
)

// DefaultRankLimit caps how many peers a rank count looks at.
const DefaultRankLimit = 1000

// Rank is an item's 1-based position by wear among its peers. A side is omitted
// once its peer count reaches the limit.
type Rank struct {
	HighRank *int `json:"high_rank,omitempty"`
	LowRank  *int `json:"low_rank,omitempty"`
}

type RankQuery struct {
	store store.Store
	limit int
}

func NewRankQuery(st store.Store, limit int) *RankQuery {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	return &RankQuery{store: st, limit: limit}
}

// Rank looks the item up by asset id; a missing item yields an empty Rank.
func (r *RankQuery) Rank(ctx context.Context, assetID int64) (Rank, error) {
	item, err := r.store.FindItemByAsset(ctx, assetID)
	if err != nil || item == nil {
		return Rank{}, err
	}

	peers := store.PeerFilter{
		DefIndex:   item.DefIndex,
		PaintIndex: item.PaintIndex,
		StatTrak:   item.StatTrak,
		Souvenir:   item.Souvenir,
	}

	var out Rank
	lower, err := r.store.CountPeers(ctx, peers, item.PaintWear, store.Below, r.limit)
	if err != nil {
		return Rank{}, err
	}
	out.LowRank = r.position(lower)

	higher, err := r.store.CountPeers(ctx, peers, item.PaintWear, store.Above, r.limit)
	if err != nil {
		return Rank{}, err
	}
	out.HighRank = r.position(higher)
	return out, nil
}

func (r *RankQuery) position(count int64) *int {
	if count >= int64(r.limit) {
		return nil
	}
	pos := int(count) + 1
	return &pos
}
