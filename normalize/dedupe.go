package normalize

import "carscout/models"

// Dedupe collapses listings sharing a canonical id down to one record. The
// most complete record in a group wins; ties break toward the lower source
// priority value (earlier-seen source). Deterministic and idempotent:
// Dedupe(Dedupe(x)) == Dedupe(x).
func Dedupe(listings []models.NormalizedListing, priorityOf func(source string) int) []models.NormalizedListing {
	if priorityOf == nil {
		priorityOf = func(string) int { return 0 }
	}

	best := make(map[string]models.NormalizedListing, len(listings))
	order := make([]string, 0, len(listings))

	for _, l := range listings {
		current, seen := best[l.CanonicalID]
		if !seen {
			best[l.CanonicalID] = l
			order = append(order, l.CanonicalID)
			continue
		}
		if better(l, current, priorityOf) {
			best[l.CanonicalID] = l
		}
	}

	out := make([]models.NormalizedListing, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

func better(a, b models.NormalizedListing, priorityOf func(string) int) bool {
	ca, cb := a.Completeness(), b.Completeness()
	if ca != cb {
		return ca > cb
	}
	pa, pb := priorityOf(a.Source), priorityOf(b.Source)
	if pa != pb {
		return pa < pb
	}
	// Same source or equal priority: keep the incumbent for stability.
	return false
}
