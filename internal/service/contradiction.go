package service

import (
	"regexp"
	"strings"

	"github.com/mnemo-dev/mnemo/internal/domain"
)

// opposingPair is a pair of terms that, appearing on the same topic,
// signal a textual contradiction.
type opposingPair struct {
	a, b string
	kind string
}

var opposingPairs = []opposingPair{
	{"always", "never", "absolute"},
	{"must", "must not", "absolute"},
	{"must", "never", "absolute"},
	{"should", "should not", "polarity"},
	{"do", "do not", "polarity"},
	{"use", "avoid", "polarity"},
	{"allow", "forbid", "polarity"},
	{"required", "forbidden", "polarity"},
	{"enable", "disable", "toggle"},
	{"enabled", "disabled", "toggle"},
	{"on", "off", "toggle"},
	{"true", "false", "toggle"},
}

var termPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, p := range opposingPairs {
		for _, term := range []string{p.a, p.b} {
			if _, ok := termPatterns[term]; !ok {
				termPatterns[term] = regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
			}
		}
	}
}

var contradictionStopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "when": {},
	"then": {}, "they": {}, "them": {}, "will": {}, "your": {}, "here": {},
	"there": {}, "what": {}, "which": {}, "should": {}, "would": {},
	"could": {}, "into": {}, "only": {}, "also": {}, "very": {}, "been": {},
	"were": {}, "does": {}, "done": {}, "always": {}, "never": {},
}

// DetectContradiction looks for opposing-term pairs between existing and
// new content, matched as whole words. A hit is only reported when the
// sentences containing each term share context keywords, which suppresses
// false positives on unrelated topics.
func DetectContradiction(existing, new string) *domain.ContradictionResult {
	existingLower := strings.ToLower(existing)
	newLower := strings.ToLower(new)

	for _, p := range opposingPairs {
		if r := matchOpposing(existingLower, newLower, p.a, p.b, p.kind); r != nil {
			return r
		}
		if r := matchOpposing(existingLower, newLower, p.b, p.a, p.kind); r != nil {
			return r
		}
	}
	return &domain.ContradictionResult{Found: false}
}

func matchOpposing(existing, new, existingTerm, newTerm, kind string) *domain.ContradictionResult {
	existingSentence, ok := sentenceWithTerm(existing, existingTerm, newTerm)
	if !ok {
		return nil
	}
	newSentence, ok := sentenceWithTerm(new, newTerm, existingTerm)
	if !ok {
		return nil
	}

	shared := sharedKeywords(existingSentence, newSentence)
	if len(shared) == 0 {
		return nil
	}
	return &domain.ContradictionResult{
		Found:          true,
		Type:           kind,
		ExistingTerm:   existingTerm,
		NewTerm:        newTerm,
		SharedKeywords: shared,
	}
}

// sentenceWithTerm finds the first sentence containing term as a whole
// word. When the opposing term extends this one (e.g. "must" vs "must
// not"), a sentence containing the longer phrase does not count as a hit
// for the shorter.
func sentenceWithTerm(text, term, opposing string) (string, bool) {
	pattern := termPatterns[term]
	var opposingPattern *regexp.Regexp
	if strings.Contains(opposing, term) {
		opposingPattern = termPatterns[opposing]
	}

	for _, sentence := range splitSentences(text) {
		if !pattern.MatchString(sentence) {
			continue
		}
		if opposingPattern != nil && opposingPattern.MatchString(sentence) {
			continue
		}
		return sentence, true
	}
	return "", false
}

var sentenceSplitter = regexp.MustCompile(`[.!?;\n]+`)

func splitSentences(text string) []string {
	parts := sentenceSplitter.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// sharedKeywords returns the significant words both sentences mention.
func sharedKeywords(a, b string) []string {
	wordsA := significantWords(a)
	wordsB := significantWords(b)

	var shared []string
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			shared = append(shared, w)
		}
	}
	return shared
}

var wordPattern = regexp.MustCompile(`[a-z0-9_-]+`)

func significantWords(sentence string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, w := range wordPattern.FindAllString(sentence, -1) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := contradictionStopwords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}
