// Package plagiarism scores how much two answer texts overlap.
package plagiarism

import "strings"

// Threshold is the score above which an answer is reported as plagiarised.
const Threshold = 0.5

// Candidate is a previously submitted answer to compare against.
type Candidate struct {
	StudentID string
	Text      string
}

// Match is the most similar candidate found for a text.
type Match struct {
	Score       float64
	StudentID   string
	SimilarText string
}

// Plagiarized reports whether the score exceeds Threshold.
func (m Match) Plagiarized() bool { return m.Score > Threshold }

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| over the sets of whitespace separated words
// of a and b. Words are compared verbatim. Two texts without any words
// score 0.
func Jaccard(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)

	var inter int
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// MostSimilar scores text against every candidate and returns the best one.
// Ties keep the earliest candidate; an empty list yields a zero Match.
func MostSimilar(text string, candidates []Candidate) Match {
	var best Match
	for _, c := range candidates {
		if s := Jaccard(text, c.Text); s > best.Score {
			best = Match{Score: s, StudentID: c.StudentID, SimilarText: c.Text}
		}
	}
	return best
}
