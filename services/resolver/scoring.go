package resolver

import (
	"strings"
	"time"
	"unicode"

	"assistbackend/config"
)

// Options tunes matching. The zero value is not useful; start from DefaultOptions.
type Options struct {
	// MatchThreshold is the confidence a top hit needs to be returned as the match
	MatchThreshold float64
	// CandidateThreshold is the confidence a hit needs to be offered for disambiguation
	CandidateThreshold float64
	// AllTokensScore is awarded when every query token appears in the summary
	AllTokensScore float64
	// PartialScoreCap bounds the weighted partial-overlap score
	PartialScoreCap float64
	JaccardWeight   float64
	CoverageWeight  float64

	MaxCandidates    int
	PerCalendarLimit int
	DefaultWindow    time.Duration
	MaxConcurrency   int
}

func DefaultOptions() Options {
	return Options{
		MatchThreshold:     config.DefaultMatchThreshold,
		CandidateThreshold: config.DefaultCandidateThreshold,
		AllTokensScore:     0.95,
		PartialScoreCap:    0.9,
		JaccardWeight:      0.5,
		CoverageWeight:     0.5,
		MaxCandidates:      3,
		PerCalendarLimit:   100,
		DefaultWindow:      30 * 24 * time.Hour,
		MaxConcurrency:     4,
	}
}

// OptionsFromConfig applies the configured thresholds on top of the defaults
func OptionsFromConfig(cfg config.ResolverConfig) Options {
	options := DefaultOptions()
	if cfg.MatchThreshold > 0 {
		options.MatchThreshold = cfg.MatchThreshold
	}
	if cfg.CandidateThreshold > 0 {
		options.CandidateThreshold = cfg.CandidateThreshold
	}
	return options
}

// Score rates how well an event summary matches a free-text query, in [0, 1], using the default weights
func Score(query, summary string) float64 {
	return DefaultOptions().Score(query, summary)
}

// Score rates how well an event summary matches a free-text query, in [0, 1].
// Text is compared without emoji, case or repeated whitespace. Tokens are compared loosely:
// two tokens match when one contains the other.
func (o Options) Score(query, summary string) float64 {
	normalizedQuery := normalizeText(query)
	normalizedSummary := normalizeText(summary)
	if normalizedQuery == "" || normalizedSummary == "" {
		return 0
	}

	if strings.Contains(normalizedSummary, normalizedQuery) || strings.Contains(normalizedQuery, normalizedSummary) {
		return 1
	}

	queryTokens := tokenize(normalizedQuery)
	summaryTokens := tokenize(normalizedSummary)
	if len(queryTokens) == 0 || len(summaryTokens) == 0 {
		return 0
	}

	matched := 0
	for _, queryToken := range queryTokens {
		for _, summaryToken := range summaryTokens {
			if tokensMatch(queryToken, summaryToken) {
				matched++
				break
			}
		}
	}

	if matched == len(queryTokens) {
		return o.AllTokensScore
	}

	coverage := float64(matched) / float64(len(queryTokens))
	union := len(queryTokens) + len(summaryTokens) - matched
	jaccard := float64(matched) / float64(union)
	return min(o.PartialScoreCap, o.JaccardWeight*jaccard+o.CoverageWeight*coverage)
}

func tokensMatch(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// normalizeText drops emoji, lowercases and collapses whitespace
func normalizeText(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if isEmojiRune(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}

func isEmojiRune(r rune) bool {
	switch {
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	}
	return unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r)
}

// tokenize returns the distinct alphanumeric runs longer than one character
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) < 2 || seen[field] {
			continue
		}
		seen[field] = true
		tokens = append(tokens, field)
	}
	return tokens
}
