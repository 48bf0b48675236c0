// Package knowledge provides the in-memory retrieval index over the
// university knowledge base (a Markdown/plain-text file of campus facts).
// It is deterministic, dependency-free, and safe for concurrent reads:
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode-aware tokenization with stop-word removal
//   - Immutable, read-only index after construction
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// fact's token set: score = |Q ∩ F| / |Q ∪ F|.
package knowledge

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked fact with its similarity score.
type Result struct {
	Snippet string
	Score   float64
}

// Index is the minimal retrieval contract consumed by the assistant.
type Index interface {
	TopK(query string, k int) []Result
}

// fact is one indexed unit: a sentence-or-paragraph of campus knowledge.
type fact struct {
	text   string
	tokens map[string]struct{}
}

type index struct {
	facts     []fact
	stopwords map[string]struct{}
}

// minFactRunes drops trivially short lines ("## Fees", list bullets alone).
const minFactRunes = 16

// LoadFile reads the knowledge file at path and builds an Index from it.
// Markdown tables are flattened into one fact per row; headings and bullet
// markers are stripped so each fact reads as plain text.
func LoadFile(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var facts []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := cleanLine(sc.Text())
		if line != "" {
			facts = append(facts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return FromFacts(facts), nil
}

// FromFacts builds an Index directly from pre-cleaned fact strings.
func FromFacts(facts []string) Index {
	idx := &index{stopwords: defaultStopwords}
	for _, raw := range facts {
		t := strings.Join(strings.Fields(raw), " ")
		if utf8.RuneCountInString(t) < minFactRunes {
			continue
		}
		toks := tokenize(t, idx.stopwords)
		if len(toks) == 0 {
			continue
		}
		idx.facts = append(idx.facts, fact{text: t, tokens: toks})
	}
	return idx
}

// TopK returns up to k best-matching facts by Jaccard similarity, best first.
// Ties are broken by preferring shorter facts, then lexicographically, so the
// ordering is fully deterministic.
func (i *index) TopK(query string, k int) []Result {
	if len(i.facts) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	q := tokenize(query, i.stopwords)
	if len(q) == 0 {
		return nil
	}

	type scored struct {
		text  string
		score float64
	}
	var buf []scored
	for _, f := range i.facts {
		inter := intersection(q, f.tokens)
		if inter == 0 {
			continue
		}
		union := len(q) + len(f.tokens) - inter
		buf = append(buf, scored{text: f.text, score: float64(inter) / float64(union)})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		la, lb := utf8.RuneCountInString(buf[a].text), utf8.RuneCountInString(buf[b].text)
		if la != lb {
			return la < lb
		}
		return buf[a].text < buf[b].text
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		out[n] = Result{Snippet: buf[n].text, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Line cleanup

var tableSepRE = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)

// cleanLine strips Markdown structure from one source line and returns the
// plain-text fact it carries, or "" when the line holds none.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	// Table separator rows carry no content.
	if tableSepRE.MatchString(line) {
		return ""
	}

	// Table rows become "cell cell cell" facts.
	if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
		cells := strings.Split(strings.Trim(line, "|"), "|")
		kept := cells[:0]
		for _, c := range cells {
			if c = strings.TrimSpace(c); c != "" {
				kept = append(kept, c)
			}
		}
		return strings.Join(kept, " ")
	}

	// Headings and bullets keep their text only.
	line = strings.TrimLeft(line, "#")
	line = strings.TrimPrefix(strings.TrimSpace(line), "- ")
	line = strings.TrimPrefix(line, "* ")
	return strings.TrimSpace(line)
}

// ----------------------------------------------------------------------------
// Tokenization

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

var defaultStopwords = func() map[string]struct{} {
	words := []string{
		"the", "a", "an", "and", "or", "of", "to", "in", "is", "are", "for",
		"on", "with", "by", "from", "at", "as", "that", "this", "it", "be",
		"was", "were", "what", "which", "where", "when", "how", "do", "does",
		"can", "i", "you", "my", "me",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func intersection(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
