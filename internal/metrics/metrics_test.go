package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.StructureLoaded(SourceCache)
	c.StructureLoaded(SourceText)
	c.StructureLoaded(SourceText)
	c.DecodeFailure()
	c.ParseErrors(3)
	c.ParseErrors(0)
	c.BranchEvaluated(ResultSelected)
	c.BlocksPlaced(10)

	body := scrape(t, c)
	for _, line := range []string{
		`customobjects_structures_loaded_total{source="cache"} 1`,
		`customobjects_structures_loaded_total{source="text"} 2`,
		`customobjects_cache_decode_failures_total 1`,
		`customobjects_parse_errors_total 3`,
		`customobjects_blocks_placed_total 10`,
		`customobjects_branch_evaluations_total{result="selected"} 1`,
	} {
		assert.Contains(t, body, line)
	}
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.StructureLoaded(SourceText)
		c.DecodeFailure()
		c.ParseErrors(1)
		c.BranchEvaluated(ResultNone)
		c.BlocksPlaced(1)
		c.ExpansionDone()
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ExpansionDone()

	assert.True(t, strings.Contains(scrape(t, c), "customobjects_expansions_total 1"))

	// два коллектора не конфликтуют
	assert.NotPanics(t, func() { NewCollector() })
}
