package usecase

import (
	"time"

	"github.com/latvis980/adu/internal/domain"
)

// SelectNew keeps the candidates whose identifiers survived the tracker's
// existence check, in discovery order, truncated to limit. A limit of zero or
// less means no cap.
func SelectNew(candidates []domain.Candidate, newIDs []string, limit int) []domain.Candidate {
	isNew := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		isNew[id] = struct{}{}
	}

	var selected []domain.Candidate
	for _, cand := range candidates {
		if _, ok := isNew[cand.Identifier]; !ok {
			continue
		}
		selected = append(selected, cand)
		if limit > 0 && len(selected) == limit {
			break
		}
	}
	return selected
}

// TooOld reports whether a publish date falls outside the source's age
// window. An article exactly maxAgeDays old is still fresh. A zero date means
// the date could not be determined; such candidates pass, erring on the side
// of processing.
func TooOld(published time.Time, maxAgeDays int, now time.Time) bool {
	if published.IsZero() || maxAgeDays <= 0 {
		return false
	}
	return now.Sub(published) > time.Duration(maxAgeDays)*24*time.Hour
}
