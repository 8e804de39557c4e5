package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// LogSummary writes the collectors gathered so far to the log. The CLI calls
// it once per invocation so operators get final counts without running a
// scrape endpoint.
func LogSummary(log zerolog.Logger) {
	RegisterMetrics()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("failed to gather metrics")
		return
	}

	for _, fam := range families {
		if !strings.HasPrefix(fam.GetName(), "strata_") {
			continue
		}

		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				event := log.Info().Str("metric", fam.GetName())
				for _, lp := range m.GetLabel() {
					event = event.Str(lp.GetName(), lp.GetValue())
				}
				event.Float64("value", m.GetCounter().GetValue()).Msg("metric")
			case m.GetHistogram() != nil:
				event := log.Info().Str("metric", fam.GetName())
				for _, lp := range m.GetLabel() {
					event = event.Str(lp.GetName(), lp.GetValue())
				}
				event.Uint64("count", m.GetHistogram().GetSampleCount()).
					Float64("sum_seconds", m.GetHistogram().GetSampleSum()).
					Msg("metric")
			}
		}
	}
}
