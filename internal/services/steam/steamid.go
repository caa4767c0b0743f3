package steam

import "strconv"

// SteamID64 bit layout: account id (0-31), instance (32-51), account type (52-55), universe (56-63).
const (
	accountTypeIndividual = 1
	maxUniverse           = 5
	maxInstance           = 4
)

// IsSteamID64 reports whether s is a plausible individual Steam account id.
// Market listing ids share the same numeric space, so this is a format check only.
func IsSteamID64(s string) bool {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return false
	}
	return IsSteamID64Value(id)
}

func IsSteamID64Value(id uint64) bool {
	universe := id >> 56
	accountType := (id >> 52) & 0xF
	instance := (id >> 32) & 0xFFFFF
	accountID := id & 0xFFFFFFFF

	if universe == 0 || universe > maxUniverse {
		return false
	}
	if accountType != accountTypeIndividual {
		return false
	}
	return instance <= maxInstance && accountID != 0
}
