// Package lineage reconstructs the call graph over cooked requests. Capture
// logs carry no session identifiers, so parentage is inferred from payload
// content: an agent's next call replays its previous context plus the new
// turns, which makes the parent the earlier call whose context the request
// most plausibly extends.
package lineage

import (
	"sort"

	"github.com/llmpath/llmpath/internal/cook"
)

const (
	// toolSetWeight penalises candidates whose tool set diverged from the
	// request being placed. Half a message of edit distance per differing
	// tool keeps tool churn from dominating the score.
	toolSetWeight = 0.5

	// thresholdPerMessage sets how much total divergence is tolerable
	// before a request is declared a root: the best score must stay within
	// half the request's own prefix length.
	thresholdPerMessage = 0.5
)

// Assign fills ParentID on every request in place. Each request links to
// the earlier same-model request whose expected follow-up context (its
// prompt plus its response messages) sits closest in edit distance to the
// request's own prompt. Ties prefer the most recent candidate. A request
// stays a root when no candidate exists or the best one diverges beyond
// the acceptance threshold. Error-flagged requests never serve as parents
// but may still receive one.
//
// The slice order is left untouched; requests are scored in timestamp
// order with ids breaking ties.
func Assign(requests []cook.Request) {
	order := make([]*cook.Request, len(requests))
	for i := range requests {
		order[i] = &requests[i]
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Timestamp != order[j].Timestamp {
			return order[i].Timestamp < order[j].Timestamp
		}
		return order[i].ID < order[j].ID
	})

	for i, r := range order {
		r.ParentID = nil

		var best *cook.Request
		bestScore := 0.0
		// newest first, so equal scores keep the most recent candidate
		for j := i - 1; j >= 0; j-- {
			c := order[j]
			if c.Timestamp >= r.Timestamp || c.Error != "" || c.Model != r.Model {
				continue
			}
			score := scoreCandidate(c, r)
			if best == nil || score > bestScore {
				best = c
				bestScore = score
			}
		}
		if best == nil {
			continue
		}
		if bestScore >= -thresholdPerMessage*float64(len(r.RequestMessages)) {
			id := best.ID
			r.ParentID = &id
		}
	}
}

// scoreCandidate measures how well r's prompt extends candidate c. A
// perfect continuation replays c's prompt and response verbatim before
// adding new turns, which cost exactly their count in edit distance; the
// acceptance threshold absorbs that.
func scoreCandidate(c, r *cook.Request) float64 {
	expected := make([]string, 0, len(c.RequestMessages)+len(c.ResponseMessages))
	expected = append(expected, c.RequestMessages...)
	expected = append(expected, c.ResponseMessages...)
	return -float64(levenshtein(expected, r.RequestMessages)) -
		toolSetWeight*float64(symmetricDiff(c.Tools, r.Tools))
}

// levenshtein is the unit-cost edit distance between two id sequences.
func levenshtein(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// symmetricDiff counts ids present in exactly one of the two sets.
func symmetricDiff(a, b []string) int {
	const (
		inA = 1
		inB = 2
	)
	seen := make(map[string]int, len(a)+len(b))
	for _, id := range a {
		seen[id] |= inA
	}
	for _, id := range b {
		seen[id] |= inB
	}
	count := 0
	for _, mask := range seen {
		if mask != inA|inB {
			count++
		}
	}
	return count
}
