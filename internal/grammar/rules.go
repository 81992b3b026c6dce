package grammar

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"mdnotes/internal/common"
	"mdnotes/pkg/logger"

	"github.com/client9/misspell"
	"golang.org/x/text/unicode/norm"
)

// finding is a rule hit expressed in byte offsets of the checked text.
type finding struct {
	start, end  int
	suggestions []string
	message     string
}

// Rule is a single deterministic check run over code-masked text.
type Rule struct {
	ID    string
	check func(text string) []finding
}

// RuleEngine is the built-in local engine. It runs a fixed rule set for
// American English: dictionary spelling corrections plus a handful of
// grammar and style rules.
type RuleEngine struct {
	rules []Rule
}

func NewRuleEngine() *RuleEngine {
	spelling := misspell.New()
	spelling.AddRuleList(misspell.DictAmerican)
	spelling.Compile()

	return &RuleEngine{rules: []Rule{
		{ID: "SPELLING", check: spellingRule(spelling)},
		{ID: "ENGLISH_WORD_REPEAT", check: repeatedWordRule},
		{ID: "WHITESPACE_REPETITION", check: repeatedSpaceRule},
		{ID: "SPACE_BEFORE_PUNCTUATION", check: spaceBeforePunctuationRule},
		{ID: "UPPERCASE_SENTENCE_START", check: sentenceStartRule},
		{ID: "EN_A_VS_AN", check: articleRule},
	}}
}

// Check runs every rule. A rule that panics, or a cancelled context, fails the
// whole check with common.ErrGrammarCheckFailed; partial results are never
// returned.
func (e *RuleEngine) Check(ctx context.Context, text string) ([]Issue, error) {
	maskedText := maskCode(text)

	type hit struct {
		finding
		rule int
	}
	var hits []hit
	for i, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrGrammarCheckFailed, err)
		}
		found, err := runRule(rule, maskedText)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			hits = append(hits, hit{finding: f, rule: i})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].start != hits[b].start {
			return hits[a].start < hits[b].start
		}
		return hits[a].rule < hits[b].rule
	})

	ix := newTextIndex(text)
	issues := make([]Issue, 0, len(hits))
	for _, h := range hits {
		issues = append(issues, ix.issue(h.start, h.end, strings.Join(h.suggestions, ", "), h.message))
	}
	return issues, nil
}

func runRule(rule Rule, text string) (found []finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Sugar.Errorf("grammar rule %s panicked: %v", rule.ID, r)
			found, err = nil, fmt.Errorf("%w: rule %s: %v", common.ErrGrammarCheckFailed, rule.ID, r)
		}
	}()
	return rule.check(text), nil
}

func spellingRule(r *misspell.Replacer) func(string) []finding {
	return func(text string) []finding {
		_, diffs := r.Replace(text)
		if len(diffs) == 0 {
			return nil
		}
		lineStarts := newTextIndex(text).lineStarts

		found := make([]finding, 0, len(diffs))
		for _, d := range diffs {
			if d.Line < 1 || d.Line > len(lineStarts) {
				continue
			}
			start := lineStarts[d.Line-1] + d.Column
			found = append(found, finding{
				start:       start,
				end:         start + len(d.Original),
				suggestions: []string{d.Corrected},
				message:     "Possible spelling mistake found.",
			})
		}
		return found
	}
}

var wordPattern = regexp.MustCompile(`\p{L}[\p{L}']*`)

// wordPairs calls fn for each two consecutive words separated only by spaces
// or tabs. Positions are byte offsets into text.
func wordPairs(text string, fn func(first, second []int)) {
	words := wordPattern.FindAllStringIndex(text, -1)
	for i := 1; i < len(words); i++ {
		gap := text[words[i-1][1]:words[i][0]]
		if gap == "" || strings.Trim(gap, " \t") != "" {
			continue
		}
		fn(words[i-1], words[i])
	}
}

var allowedRepeats = map[string]bool{"had": true, "that": true}

func repeatedWordRule(text string) []finding {
	var found []finding
	wordPairs(text, func(first, second []int) {
		a, b := text[first[0]:first[1]], text[second[0]:second[1]]
		if !strings.EqualFold(a, b) || allowedRepeats[strings.ToLower(a)] {
			return
		}
		found = append(found, finding{
			start:       first[0],
			end:         second[1],
			suggestions: []string{a},
			message:     "Possible typo: you repeated a word.",
		})
	})
	return found
}

var repeatedSpace = regexp.MustCompile(` {2,}`)

func repeatedSpaceRule(text string) []finding {
	var found []finding
	forEachLine(text, func(line string, base int) {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			return
		}
		for _, m := range repeatedSpace.FindAllStringIndex(line, -1) {
			// only gaps between two visible characters
			if m[0] == 0 || m[1] == len(line) || blankByte(line[m[0]-1]) || blankByte(line[m[1]]) {
				continue
			}
			found = append(found, finding{
				start:       base + m[0],
				end:         base + m[1],
				suggestions: []string{" "},
				message:     "Whitespace repetition found.",
			})
		}
	})
	return found
}

var spaceBeforePunct = regexp.MustCompile(`[\p{L}\d]( +)([,;!?])`)

func spaceBeforePunctuationRule(text string) []finding {
	var found []finding
	for _, m := range spaceBeforePunct.FindAllStringSubmatchIndex(text, -1) {
		punct := text[m[4]:m[5]]
		if (punct == "!" || punct == "?") && m[5] < len(text) && !isBoundary(text[m[5]]) {
			continue
		}
		found = append(found, finding{
			start:       m[2],
			end:         m[5],
			suggestions: []string{punct},
			message:     "Don't put a space before the punctuation mark.",
		})
	}
	return found
}

var (
	sentenceBreak = regexp.MustCompile(`[.!?]( +)(\p{Ll})`)
	abbreviations = map[string]bool{
		"e.g": true, "i.e": true, "etc": true, "vs": true, "cf": true, "approx": true,
		"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "no": true, "fig": true,
	}
)

func sentenceStartRule(text string) []finding {
	var found []finding
	for _, m := range sentenceBreak.FindAllStringSubmatchIndex(text, -1) {
		punct := m[0]
		if punct > 0 && text[punct-1] == '.' {
			continue
		}
		if text[punct] == '.' {
			token := strings.ToLower(precedingToken(text, punct))
			if abbreviations[token] || isNumber(token) {
				continue
			}
		}
		letter := text[m[4]:m[5]]
		found = append(found, finding{
			start:       m[4],
			end:         m[5],
			suggestions: []string{strings.ToUpper(letter)},
			message:     "This sentence does not start with an uppercase letter.",
		})
	}
	return found
}

var (
	consonantSoundPrefixes = []string{"uni", "use", "usu", "uti", "ure", "uro", "eu", "one", "once", "ubi"}
	vowelSoundPrefixes     = []string{"hour", "honest", "honor", "honour", "heir"}
)

func articleRule(text string) []finding {
	var found []finding
	wordPairs(text, func(first, second []int) {
		article, next := text[first[0]:first[1]], text[second[0]:second[1]]
		if utf8.RuneCountInString(next) < 2 || isAcronym(next) {
			return
		}
		vowel := startsWithVowelSound(next)

		var suggestion string
		switch {
		case (article == "a" || article == "A") && vowel:
			suggestion = article + "n"
		case (article == "an" || article == "An") && !vowel:
			suggestion = article[:1]
		default:
			return
		}
		found = append(found, finding{
			start:       first[0],
			end:         first[1],
			suggestions: []string{suggestion},
			message:     fmt.Sprintf("Use %q instead of %q depending on whether the next word starts with a vowel sound.", suggestion, article),
		})
	})
	return found
}

func startsWithVowelSound(word string) bool {
	lower := strings.ToLower(word)
	for _, p := range vowelSoundPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, p := range consonantSoundPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	first, _ := utf8.DecodeRuneInString(norm.NFD.String(lower))
	return strings.ContainsRune("aeiou", first)
}

func blankByte(b byte) bool {
	return b == maskByte || b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\v' || b == '\f'
}

func isAcronym(word string) bool {
	for _, r := range word {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func isNumber(token string) bool {
	return token != "" && strings.Trim(token, "0123456789") == ""
}

func precedingToken(text string, end int) string {
	start := strings.LastIndexAny(text[:end], " \t\n") + 1
	return strings.TrimLeft(text[start:end], "([\"'")
}

func isBoundary(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || strings.IndexByte(`.,;:!?)"'*_`, b) >= 0
}

func forEachLine(text string, fn func(line string, base int)) {
	base := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		fn(line, base)
		base += len(line)
	}
}
