// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geo

// MinRecordDistance is the distance in meters a reading has to be away from the last
// recorded point to be added to a history. Anything closer is treated as GPS jitter.
const MinRecordDistance = 5.0

// ShouldRecord reports whether the candidate reading should be appended to a history whose
// most recent point is last. A nil last point means the history is empty, in which case the
// first sample is always recorded.
func ShouldRecord(last *HistoryPoint, candidate Reading) bool {
	if last == nil {
		return true
	}
	return Distance(last.Position, candidate.Position) > MinRecordDistance
}

// Tail returns a pointer to the last point of history, or nil if history is empty.
func Tail(history []HistoryPoint) *HistoryPoint {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	return &last
}
