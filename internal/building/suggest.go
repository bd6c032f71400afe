package building

import (
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
)

// jwFloor is the Jaro-Winkler score above which a candidate is accepted even
// when its edit distance exceeds the length-based limit (e.g. "barrack" vs
// "barracks_upgraded").
const jwFloor = 0.92

// Suggest returns up to limit ids from candidates that look like a misspelling
// of id, best match first. An exact match is never suggested.
//
// Candidates are accepted by edit distance, scaled to the candidate length,
// and ranked by Jaro-Winkler similarity. Ties sort lexically.
func Suggest(id string, candidates []string, limit int) []string {
	if id == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		id    string
		score float64
	}
	var results []scored
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if cand == id || cand == "" || seen[cand] {
			continue
		}
		seen[cand] = true

		jw := matchr.JaroWinkler(id, cand, false)
		dist := levenshtein.ComputeDistance(id, cand)
		if dist > distanceLimit(len(cand)) && jw < jwFloor {
			continue
		}
		results = append(results, scored{id: cand, score: jw})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return results[i].id < results[j].id
		}
		return results[i].score > results[j].score
	})

	if len(results) == 0 {
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.id
	}
	return out
}

// distanceLimit is the largest edit distance accepted for a candidate of the
// given length.
func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
