// Package similarity scores normalized strings for the fuzzy stage
// of the matching cascade.
package similarity

// Dice computes the character-bigram Dice coefficient between two
// strings, in [0,1]. The intersection is a multiset intersection:
// each shared bigram instance is consumed at most once. Equal
// non-empty strings score 1; an empty string or a string with no
// bigrams scores 0.
func Dice(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	aPairs := bigrams(a)
	bPairs := bigrams(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	remaining := make(map[string]int, len(bPairs))
	for _, p := range bPairs {
		remaining[p]++
	}

	shared := 0
	for _, p := range aPairs {
		if remaining[p] > 0 {
			remaining[p]--
			shared++
		}
	}

	return float64(2*shared) / float64(len(aPairs)+len(bPairs))
}

// HeaderScore blends character-level and token-level similarity:
// 0.65·Dice + 0.35·(unique query tokens found in the candidate /
// unique query tokens). With no tokens on either side it degrades to
// plain Dice. The character weight dominates because free-form
// request lines mangle word order and spacing more often than
// vocabulary.
func HeaderScore(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := Dice(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	candidateSet := make(map[string]struct{}, len(candidateTokens))
	for _, t := range candidateTokens {
		candidateSet[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTokens))
	unique, overlap := 0, 0
	for _, t := range queryTokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique++
		if _, ok := candidateSet[t]; ok {
			overlap++
		}
	}

	tokenScore := float64(overlap) / float64(unique)
	return 0.65*dice + 0.35*tokenScore
}

func bigrams(s string) []string {
	r := []rune(s)
	if len(r) < 2 {
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i+1 < len(r); i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}
