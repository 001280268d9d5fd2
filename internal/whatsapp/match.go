package whatsapp

import (
	"strings"
	"unicode"
)

// MatchStatus is the outcome of matching a typed description against the
// material names a site already uses.
type MatchStatus int

const (
	Matched MatchStatus = iota
	Ambiguous
	Unmatched
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "Matched"
	case Ambiguous:
		return "Ambiguous"
	case Unmatched:
		return "Unmatched"
	default:
		return "Unknown"
	}
}

type MatchResult struct {
	Status     MatchStatus
	Name       string   // when Matched
	Candidates []string // when Ambiguous
}

const (
	variantWeight = 5
	regularWeight = 1
)

// Grade words narrow a match: "opc cement" must not match "ppc cement".
var gradeWords = map[string]bool{
	"opc": true, "ppc": true, "psc": true, "white": true, "river": true,
	"m": true, "msand": true, "psand": true, "red": true, "fly": true, "ash": true,
	"tmt": true, "binding": true,
}

// Catalog matches free-text descriptions to known material names.
type Catalog struct {
	names  []string
	tokens [][]string
}

func NewCatalog(names []string) *Catalog {
	c := &Catalog{}
	seen := make(map[string]bool)
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.names = append(c.names, strings.TrimSpace(n))
		c.tokens = append(c.tokens, tokenize(n))
	}
	return c
}

func (c *Catalog) Match(desc string) MatchResult {
	input := make(map[string]bool)
	var variants []string
	for _, tok := range tokenize(desc) {
		input[tok] = true
		if isVariant(tok) {
			variants = append(variants, tok)
		}
	}

	best := 0
	var top []string
	for i, kws := range c.tokens {
		if !containsAll(kws, variants) {
			continue
		}
		score := 0
		for _, kw := range kws {
			if !input[kw] {
				continue
			}
			if isVariant(kw) {
				score += variantWeight
			} else {
				score += regularWeight
			}
		}
		switch {
		case score == 0 || score < best:
		case score > best:
			best, top = score, []string{c.names[i]}
		default:
			top = append(top, c.names[i])
		}
	}

	switch len(top) {
	case 0:
		return MatchResult{Status: Unmatched}
	case 1:
		return MatchResult{Status: Matched, Name: top[0]}
	}
	return MatchResult{Status: Ambiguous, Candidates: top}
}

// isVariant reports grade words and sizes such as "12mm" or "53".
func isVariant(tok string) bool {
	if gradeWords[tok] {
		return true
	}
	return tok != "" && unicode.IsDigit(rune(tok[0]))
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
