package extraction

import (
	"log"
	"sort"
	"strings"

	"cvalign/internal/domain/skill"
)

type Extractor struct {
	lexicon *Lexicon
	scorer  *Scorer
	log     *log.Logger
}

func NewExtractor(lexicon *Lexicon, logger *log.Logger) *Extractor {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{lexicon: lexicon, scorer: NewScorer(lexicon), log: logger}
}

// ExtractSkills scans text against the lexicon and returns one candidate per
// skill, ranked by confidence. It never fails: internal errors are logged and
// an empty slice is returned.
func (e *Extractor) ExtractSkills(text string, ref skill.Ref, source skill.Source) (out []skill.Candidate) {
	out = []skill.Candidate{}
	if e == nil || strings.TrimSpace(text) == "" {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Printf("extractor status=error reason=panic err=%v", r)
			out = []skill.Candidate{}
		}
	}()

	lower := strings.ToLower(text)
	found := make([]skill.Candidate, 0)

	for _, entry := range e.lexicon.technical {
		for _, kw := range entry.Keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			conf := e.scorer.Score(lower, kw, entry.Name)
			if conf > MinConfidence {
				found = append(found, skill.Candidate{
					Name:        entry.Name,
					Confidence:  conf,
					Source:      source,
					Ref:         ref,
					Occurrences: 1,
				})
			}
			break
		}
	}

	for _, name := range e.lexicon.soft {
		if !strings.Contains(lower, name) {
			continue
		}
		conf := e.scorer.Score(lower, name, name)
		if conf > MinConfidence {
			found = append(found, skill.Candidate{
				Name:        name,
				Confidence:  conf,
				Source:      source,
				Ref:         ref,
				Occurrences: 1,
			})
		}
	}

	return Dedupe(found)
}

// Dedupe merges candidates sharing a name: the highest confidence wins and
// occurrences accumulate. The result is sorted by confidence descending; ties
// keep first-encounter order.
func Dedupe(candidates []skill.Candidate) []skill.Candidate {
	out := make([]skill.Candidate, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for _, c := range candidates {
		name := skill.CanonicalName(c.Name)
		if name == "" {
			continue
		}
		occ := c.Occurrences
		if occ <= 0 {
			occ = 1
		}
		if i, ok := index[name]; ok {
			if c.Confidence > out[i].Confidence {
				out[i].Confidence = c.Confidence
			}
			out[i].Occurrences += occ
			continue
		}
		c.Name = name
		c.Occurrences = occ
		index[name] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
