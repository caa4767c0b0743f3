// Package codec converts between inspected items as they arrive from the
// inspection feed and the canonical rows stored in the items table.
// Everything here is pure: no I/O and no shared state.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"csgo-floatdb/internal/models"
	"csgo-floatdb/internal/services/steam"
)

const (
	// DefaultZeroFloatDefIndex is the one template allowed to carry a zero wear value.
	DefaultZeroFloatDefIndex = 507
	// SouvenirQuality marks souvenir items in records that predate the explicit flag.
	SouvenirQuality = 12
)

var ErrInvalidID = errors.New("invalid identifier")

// Options tunes the domain rules applied by Normalize.
type Options struct {
	ZeroFloatDefIndex int
}

func DefaultOptions() Options {
	return Options{ZeroFloatDefIndex: DefaultZeroFloatDefIndex}
}

// RawSticker is a sticker as reported by the inspection feed.
type RawSticker struct {
	Slot           int      `json:"slot"`
	StickerID      int      `json:"stickerId"`
	Wear           *float64 `json:"wear,omitempty"`
	Rotation       *float64 `json:"rotation,omitempty"`
	OffsetX        *float64 `json:"offset_x,omitempty"`
	OffsetY        *float64 `json:"offset_y,omitempty"`
	Name           string   `json:"name,omitempty"`
	DuplicateCount int      `json:"duplicate_count,omitempty"`
}

// RawItem is one inspected item as reported by the feed. Ids are unsigned 64-bit decimal strings.
// Stattrak arrives either as a kill-eater counter (older records) or as an explicit flag.
type RawItem struct {
	DefIndex       int          `json:"defindex"`
	PaintIndex     int          `json:"paintindex"`
	PaintSeed      int          `json:"paintseed"`
	FloatValue     float64      `json:"floatvalue"`
	A              string       `json:"a"`
	S              string       `json:"s"`
	M              string       `json:"m"`
	D              string       `json:"d"`
	FloatID        string       `json:"floatid,omitempty"`
	Quality        int          `json:"quality"`
	Origin         int          `json:"origin"`
	Rarity         int          `json:"rarity"`
	KillEaterValue *int         `json:"killeatervalue"`
	StatTrak       *bool        `json:"stattrak,omitempty"`
	Souvenir       *bool        `json:"souvenir,omitempty"`
	Stickers       []RawSticker `json:"stickers"`
}

// ExternalItem is what lookups hand back to callers.
type ExternalItem struct {
	DefIndex       int          `json:"defindex"`
	PaintIndex     int          `json:"paintindex"`
	PaintSeed      int          `json:"paintseed"`
	FloatValue     float64      `json:"floatvalue"`
	A              string       `json:"a"`
	S              string       `json:"s"`
	M              string       `json:"m"`
	D              string       `json:"d"`
	FloatID        string       `json:"floatid,omitempty"`
	Quality        int          `json:"quality"`
	Origin         int          `json:"origin"`
	Rarity         int          `json:"rarity"`
	KillEaterValue *int         `json:"killeatervalue"`
	StatTrak       bool         `json:"stattrak"`
	Souvenir       bool         `json:"souvenir"`
	Stickers       []RawSticker `json:"stickers"`
}

// EncodeWear maps a wear value onto the big-endian int32 image of its float32 bits.
// For non-negative wear the mapping is strictly monotonic.
func EncodeWear(wear float64) int32 {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], math.Float32bits(float32(wear)))
	return int32(binary.BigEndian.Uint32(buf[:]))
}

// DecodeWear is the exact inverse of EncodeWear.
func DecodeWear(encoded int32) float64 {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(encoded))
	return float64(math.Float32frombits(binary.BigEndian.Uint32(buf[:])))
}

func ToSigned(u uint64) int64 { return int64(u) }

func ToUnsigned(s int64) uint64 { return uint64(s) }

// ParseID parses an unsigned decimal id into its signed storage form. Empty means 0.
func ParseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidID, s, err)
	}
	return ToSigned(u), nil
}

// FormatID renders a stored id back to its unsigned decimal form.
func FormatID(s int64) string {
	return strconv.FormatUint(ToUnsigned(s), 10)
}

// Normalize converts a raw item into its canonical row. skip is true for placeholder
// observations (non-positive wear outside the exempt template), which must not be stored.
func Normalize(raw RawItem, opts Options) (item *models.Item, skip bool, err error) {
	if raw.FloatValue <= 0 && raw.DefIndex != opts.ZeroFloatDefIndex {
		return nil, true, nil
	}

	asset, err := ParseID(raw.A)
	if err != nil {
		return nil, false, fmt.Errorf("asset id: %w", err)
	}
	owner, err := ParseID(raw.S)
	if err != nil {
		return nil, false, fmt.Errorf("owner id: %w", err)
	}
	market, err := ParseID(raw.M)
	if err != nil {
		return nil, false, fmt.Errorf("market id: %w", err)
	}
	did, err := ParseID(raw.D)
	if err != nil {
		return nil, false, fmt.Errorf("d id: %w", err)
	}
	floatID := asset
	if raw.FloatID != "" {
		if floatID, err = ParseID(raw.FloatID); err != nil {
			return nil, false, fmt.Errorf("float id: %w", err)
		}
	}

	ms := market
	if owner != 0 {
		ms = owner
	}

	return &models.Item{
		DefIndex:   raw.DefIndex,
		PaintIndex: raw.PaintIndex,
		PaintWear:  EncodeWear(raw.FloatValue),
		PaintSeed:  raw.PaintSeed,
		FloatID:    floatID,
		AssetID:    asset,
		MSID:       ms,
		DID:        did,
		StatTrak:   isStatTrak(raw),
		Souvenir:   isSouvenir(raw),
		Props: models.ItemProps{
			Origin:  raw.Origin,
			Quality: raw.Quality,
			Rarity:  raw.Rarity,
		},
		Stickers: annotateStickers(raw.Stickers),
	}, false, nil
}

// An explicit flag is authoritative; older records only carry the counter, whose presence
// (even at zero) marks stattrak.
func isStatTrak(raw RawItem) bool {
	if raw.StatTrak != nil {
		return *raw.StatTrak
	}
	return raw.KillEaterValue != nil
}

func isSouvenir(raw RawItem) bool {
	if raw.Souvenir != nil && *raw.Souvenir {
		return true
	}
	return raw.Quality == SouvenirQuality
}

func annotateStickers(raw []RawSticker) models.StickerList {
	if len(raw) == 0 {
		return nil
	}

	out := make(models.StickerList, 0, len(raw))
	groups := make(map[int][]int)
	for i, s := range raw {
		out = append(out, models.Sticker{
			Slot:           s.Slot,
			StickerID:      s.StickerID,
			Wear:           s.Wear,
			Rotation:       s.Rotation,
			OffsetX:        s.OffsetX,
			OffsetY:        s.OffsetY,
			Name:           s.Name,
			DuplicateCount: s.DuplicateCount,
		})
		groups[s.StickerID] = append(groups[s.StickerID], i)
	}

	for _, idx := range groups {
		if len(idx) < 2 || groupMarked(out, idx) {
			continue
		}
		for _, i := range idx {
			out[i].DuplicateCount = len(idx)
		}
	}
	return out
}

func groupMarked(stickers models.StickerList, idx []int) bool {
	for _, i := range idx {
		if stickers[i].DuplicateCount > 1 {
			return true
		}
	}
	return false
}

// Denormalize restores the external view of a stored item. Storage-only fields
// (row id, encoded wear, update time, props group, price) do not appear in the result.
func Denormalize(it *models.Item) ExternalItem {
	s, m := "0", "0"
	if steam.IsSteamID64Value(ToUnsigned(it.MSID)) {
		s = FormatID(it.MSID)
	} else {
		m = FormatID(it.MSID)
	}

	out := ExternalItem{
		DefIndex:   it.DefIndex,
		PaintIndex: it.PaintIndex,
		PaintSeed:  it.PaintSeed,
		FloatValue: DecodeWear(it.PaintWear),
		A:          FormatID(it.AssetID),
		S:          s,
		M:          m,
		D:          FormatID(it.DID),
		Quality:    it.Props.Quality,
		Origin:     it.Props.Origin,
		Rarity:     it.Props.Rarity,
		StatTrak:   it.StatTrak,
		Souvenir:   it.Souvenir,
	}
	if it.FloatID != it.AssetID {
		out.FloatID = FormatID(it.FloatID)
	}
	if it.StatTrak {
		zero := 0
		out.KillEaterValue = &zero
	}
	if len(it.Stickers) > 0 {
		out.Stickers = make([]RawSticker, 0, len(it.Stickers))
		for _, st := range it.Stickers {
			out.Stickers = append(out.Stickers, RawSticker{
				Slot:           st.Slot,
				StickerID:      st.StickerID,
				Wear:           st.Wear,
				Rotation:       st.Rotation,
				OffsetX:        st.OffsetX,
				OffsetY:        st.OffsetY,
				Name:           st.Name,
				DuplicateCount: st.DuplicateCount,
			})
		}
	}
	return out
}

// IdentityKey is the batch-local dedup key for an item.
func IdentityKey(it *models.Item) string {
	return fmt.Sprintf("%d_%d_%d_%d", it.DefIndex, it.PaintIndex, it.PaintWear, it.PaintSeed)
}
