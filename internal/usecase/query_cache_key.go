package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"cvalign/internal/domain/skill"
	"cvalign/internal/infrastructure/cache"
)

type skillQueryCacheKeyInput struct {
	Skills []string `json:"skills"`
	Limit  int      `json:"limit"`
}

func skillQueryHash(skills []string, limit int) string {
	norm := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = skill.CanonicalName(s); s != "" {
			norm = append(norm, s)
		}
	}
	b, _ := json.Marshal(skillQueryCacheKeyInput{Skills: norm, Limit: limit})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Order matters: results are concatenated per input skill.
func RelatedSkillsCacheKey(skills []string, limit int) string {
	return cache.PrefixRelated + skillQueryHash(skills, limit)
}

func SimilarJobsCacheKey(skills []string, limit int) string {
	return cache.PrefixJobs + skillQueryHash(skills, limit)
}

func TopSkillsCacheKey(limit int) string {
	return cache.PrefixTop + strconv.Itoa(limit)
}
