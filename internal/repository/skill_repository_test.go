package repository

import (
	"testing"

	"cvalign/internal/domain/skill"

	"github.com/stretchr/testify/assert"
)

func TestLockOrder_SameRowsSameOrder(t *testing.T) {
	a := []skill.Candidate{{Name: "Python"}, {Name: "sql"}, {Name: "Docker"}}
	b := []skill.Candidate{{Name: "SQL"}, {Name: "docker"}, {Name: "python"}}

	names := func(cands []skill.Candidate) []string {
		var out []string
		for _, i := range lockOrder(cands) {
			out = append(out, skill.CanonicalName(cands[i].Name))
		}
		return out
	}
	assert.Equal(t, []string{"docker", "python", "sql"}, names(a))
	assert.Equal(t, names(a), names(b))
}

func TestLockOrder_IndexesCoverInput(t *testing.T) {
	cands := []skill.Candidate{{Name: "go"}, {Name: "aws"}, {Name: "go"}}
	assert.Equal(t, []int{1, 0, 2}, lockOrder(cands))
	assert.Empty(t, lockOrder(nil))
}
