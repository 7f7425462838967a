package usecase

import (
	"strings"

	"cvalign/internal/domain/skill"
)

// requiredSkillsByRole lists canonical skills per known job title, most
// important first.
var requiredSkillsByRole = map[string][]string{
	"software engineer":         {"javascript", "python", "java", "sql", "git", "rest api", "testing", "docker"},
	"backend developer":         {"go", "java", "python", "sql", "redis", "rest api", "microservices", "docker", "linux"},
	"frontend developer":        {"javascript", "typescript", "html", "css", "graphql", "testing", "git", "figma"},
	"full stack developer":      {"javascript", "typescript", "html", "css", "sql", "mongodb", "rest api", "docker", "git"},
	"data scientist":            {"python", "sql", "statistics", "machine learning", "data analysis"},
	"data engineer":             {"python", "sql", "big data", "aws", "docker", "linux", "ci/cd"},
	"machine learning engineer": {"python", "machine learning", "deep learning", "statistics", "docker", "kubernetes", "aws"},
	"devops engineer":           {"linux", "docker", "kubernetes", "terraform", "ci/cd", "aws", "git"},
	"mobile developer":          {"android", "ios", "javascript", "rest api", "git", "testing"},
	"ui/ux designer":            {"figma", "html", "css", "communication", "creativity"},
	"project manager":           {"project management", "communication", "leadership", "time management", "negotiation"},
}

// recommend returns the role's required skills not already mentioned in
// current, keeping table order. Matching is a case-insensitive substring test
// against each current entry, so free text like "I know Python" counts.
// Unknown titles yield an empty list.
func recommend(targetJob string, current []string, limit int) []string {
	required, ok := requiredSkillsByRole[skill.CanonicalName(targetJob)]
	out := []string{}
	if !ok {
		return out
	}

	have := make([]string, 0, len(current))
	for _, c := range current {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			have = append(have, c)
		}
	}

	for _, req := range required {
		if len(out) >= limit {
			break
		}
		if mentioned(req, have) {
			continue
		}
		out = append(out, req)
	}
	return out
}

func mentioned(req string, have []string) bool {
	for _, h := range have {
		if strings.Contains(h, req) {
			return true
		}
	}
	return false
}
