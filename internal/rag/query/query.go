// Package query implements query normalization, tokenization and multi-query
// expansion for the retrieve stage (spec §4.1), grounded on
// original_source's chat_worker/application/rag/helpers/query.py.
package query

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Mode selects how aggressively Normalize rewrites a query.
type Mode string

const (
	// Light normalization: Unicode NFC, lowercase, collapse whitespace, keep dashes.
	Light Mode = "light"
	// Full normalization: light, plus Korean<->ASCII/digit boundary spacing,
	// punctuation stripping and dash collapsing.
	Full Mode = "full"
)

// koAlias is one phonetic-Korean -> ASCII-acronym rewrite rule.
type koAlias struct {
	from string
	to   string
}

// aliasTable maps Korean phonetic renderings of technical terms to their
// ASCII acronym, case-insensitively. Order matters only for readability; all
// rules are applied every time.
var aliasTable = []koAlias{
	{"챗지피티", "chatgpt"},
	{"지피티", "gpt"},
	{"엘엘엠", "llm"},
	{"에이아이", "ai"},
	{"에이피아이", "api"},
	{"디비", "db"},
	{"유아이", "ui"},
	{"유엑스", "ux"},
	{"씨피유", "cpu"},
	{"지피유", "gpu"},
	{"에스디케이", "sdk"},
	{"큐엔에이", "qna"},
	{"에프에이큐", "faq"},
}

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s\-]`)
	dashRunRegex    = regexp.MustCompile(`-{2,}`)
	wordRegex       = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

func isHangulRune(r rune) bool {
	return unicode.In(r, unicode.Hangul)
}

func isASCIIWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func runeClassAt(s []rune, i int) int {
	// 0 = hangul, 1 = ascii/digit, 2 = other
	r := s[i]
	switch {
	case isHangulRune(r):
		return 0
	case isASCIIWordRune(r):
		return 1
	default:
		return 2
	}
}

// insertBoundarySpaces inserts a space wherever a Hangul rune is directly
// adjacent to an ASCII letter/digit rune, so "GPT모델" becomes "GPT 모델".
func insertBoundarySpaces(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		if i+1 < len(runes) {
			cur := runeClassAt(runes, i)
			next := runeClassAt(runes, i+1)
			if (cur == 0 && next == 1) || (cur == 1 && next == 0) {
				b.WriteRune(' ')
			}
		}
	}
	return b.String()
}

func applyAliases(s string) string {
	lower := strings.ToLower(s)
	for _, rule := range aliasTable {
		if strings.Contains(lower, rule.from) {
			// Case-insensitive replace: the alias table keys are Korean, which
			// carries no case, so a direct Contains/ReplaceAll on the
			// lower-cased copy is sufficient and preserves ASCII casing elsewhere.
			s = strings.ReplaceAll(s, rule.from, rule.to)
			lower = strings.ToLower(s)
		}
	}
	return s
}

// Normalize rewrites q according to mode. Idempotent under repeated
// full-mode application: normalize(normalize(q, full), full) == normalize(q, full).
func Normalize(q string, mode Mode) string {
	s := norm.NFC.String(q)
	s = strings.ToLower(s)
	s = applyAliases(s)
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if mode == Light {
		return s
	}

	s = insertBoundarySpaces(s)
	s = punctRegex.ReplaceAllString(s, " ")
	s = dashRunRegex.ReplaceAllString(s, "-")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return s
}

// DefaultStopwords is the built-in stopword set used when no ko_stop_tokens
// list is configured.
var DefaultStopwords = map[string]struct{}{
	"그리고": {}, "그러나": {}, "그래서": {}, "하지만": {}, "또한": {},
	"the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "for": {}, "is": {}, "are": {},
}

func isWordLongEnough(w []rune) bool {
	return len(w) >= 2
}

// Tokenize returns the Unicode words (≥2 chars, ASCII letters+digits or
// Hangul) of q, lowercased, minus stopwords.
func Tokenize(q string, stopwords map[string]struct{}) []string {
	if stopwords == nil {
		stopwords = DefaultStopwords
	}
	lower := strings.ToLower(q)
	matches := wordRegex.FindAllString(lower, -1)
	out := make([]string, 0, len(matches))
	for _, w := range matches {
		runes := []rune(w)
		if !isWordLongEnough(runes) {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// isRare classifies a token as "rare": ASCII words of length >= 4, or
// Hangul words of length >= 3 (§4.1).
func isRare(w string) bool {
	runes := []rune(w)
	allASCII := true
	allHangul := true
	for _, r := range runes {
		if !isASCIIWordRune(r) {
			allASCII = false
		}
		if !isHangulRune(r) {
			allHangul = false
		}
	}
	if allASCII {
		return len(runes) >= 4
	}
	if allHangul {
		return len(runes) >= 3
	}
	return len(runes) >= 4
}

// TokensSplit returns (all tokens, rare-subset tokens) for q.
func TokensSplit(q string, stopwords map[string]struct{}) (all []string, rare []string) {
	all = Tokenize(q, stopwords)
	for _, t := range all {
		if isRare(t) {
			rare = append(rare, t)
		}
	}
	return all, rare
}

// ExpandQueries returns an ordered, deduplicated list of query variants
// capped at mmq, in the order: original, light-normalized, full-normalized,
// rare tokens joined, all tokens joined (§4.1). When mmq <= 1, returns [q].
func ExpandQueries(q string, mmq int, stopwords map[string]struct{}) []string {
	if mmq <= 1 {
		return []string{q}
	}
	var variants []string
	seen := map[string]struct{}{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	add(q)
	add(Normalize(q, Light))
	add(Normalize(q, Full))
	all, rare := TokensSplit(q, stopwords)
	if len(rare) > 0 {
		add(strings.Join(rare, " "))
	}
	if len(all) > 0 {
		add(strings.Join(all, " "))
	}

	if mmq < 1 {
		mmq = 1
	}
	if len(variants) > mmq {
		variants = variants[:mmq]
	}
	return variants
}
