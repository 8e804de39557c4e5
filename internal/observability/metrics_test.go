package observability

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		RegisterMetrics()
		RegisterMetrics()
	})
}

func TestLogSummaryReportsCounters(t *testing.T) {
	Migrations().WithLabelValues("up", "applied").Inc()
	CommentRows().WithLabelValues("up", "migrated").Add(3)

	var buf bytes.Buffer
	LogSummary(zerolog.New(&buf))

	out := buf.String()
	require.Contains(t, out, "strata_migrations_total")
	require.Contains(t, out, "strata_comment_rows_total")
	require.Contains(t, out, `"direction":"up"`)
}
