package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSocialScoreExpr(t *testing.T) {
	expr := socialScoreExpr("cheers_given")
	assert.Equal(t,
		"cheers_received * 2 + comments_received * 2.5 + (cheers_given + 1) * 1 + comments_given * 1.5",
		expr)

	// Every whitelisted counter gets the inline + 1 when it is the one
	// being bumped, and every weighted column appears exactly once.
	for counter, column := range socialColumns {
		expr := socialScoreExpr(counter)
		assert.Contains(t, expr, "("+column+" + 1)")
		for _, w := range socialWeights {
			assert.Equal(t, 1, strings.Count(expr, w.column), "column %s in %q", w.column, expr)
		}
	}
}
