package batch

// Backfill depth bands, in calendar days of history to request
const (
	fullHistoryDays = 10000
	sparseDays      = 365
	topUpDays       = 90
	refreshDays     = 30
)

// BackfillDays maps an instrument's stored bar count to how many days of
// history the next fetch should request. Empty instruments get maximal
// history, well-populated ones only a light refresh. An instrument left
// half-filled by an interrupted run needs no special handling, the next
// run re-evaluates it against its now-larger volume.
func BackfillDays(currentVolume int64) int {
	switch {
	case currentVolume <= 0:
		return fullHistoryDays
	case currentVolume < 100:
		return sparseDays
	case currentVolume < 1000:
		return topUpDays
	default:
		return refreshDays
	}
}
