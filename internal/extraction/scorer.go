package extraction

import (
	"math"
	"regexp"
	"strings"
)

const (
	baseConfidence  = 0.5
	repeatBonus     = 0.2
	sectionBonus    = 0.2
	experienceBonus = 0.1
	technicalBonus  = 0.1
	maxConfidence   = 1.0

	// MinConfidence is exclusive: a candidate must score strictly above it.
	MinConfidence = 0.3
)

var sectionCues = []string{"skills", "technical skills", "competencies", "expertise"}

var experienceRe = regexp.MustCompile(`(?i)\d+ ?(years?|yrs?) ?(of)? ?(experience|exp)`)

// Scorer computes a bounded confidence from contextual signals in the text.
type Scorer struct {
	lexicon *Lexicon
}

func NewScorer(lexicon *Lexicon) *Scorer {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Scorer{lexicon: lexicon}
}

// Score expects text and keyword already lower-cased. Keyword repeats are a
// plain substring count, so "go" also counts inside "mongodb".
func (s *Scorer) Score(text, keyword, skillName string) float64 {
	conf := baseConfidence

	if keyword != "" && strings.Count(text, keyword) > 1 {
		conf += repeatBonus
	}
	if hasSectionCue(text) {
		conf += sectionBonus
	}
	if experienceRe.MatchString(text) {
		conf += experienceBonus
	}
	if s.lexicon.IsTechnical(skillName) {
		conf += technicalBonus
	}

	if conf > maxConfidence {
		conf = maxConfidence
	}
	return math.Round(conf*100) / 100
}

func hasSectionCue(text string) bool {
	for _, cue := range sectionCues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
