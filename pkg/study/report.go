package study

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// WriteText renders a human-readable study report. Column content is a
// deterministic function of the report's summaries.
func WriteText(w io.Writer, report *Report) {
	title := color.New(color.Bold, color.FgCyan)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	_, _ = title.Fprintf(w, "study %s\n", report.ID)
	_, _ = fmt.Fprintf(w, "units: %d executed, %d cached, %d failed in %s\n\n",
		report.Executed, report.CacheHits, report.Failed, report.Elapsed.Round(1e6))

	for _, s := range report.Summaries {
		_, _ = title.Fprintf(w, "%s %s\n", s.Study, formatParams(s.Params))
		if s.Failed > 0 {
			_, _ = bad.Fprintf(w, "  %d/%d runs failed\n", s.Failed, s.Runs)
		}
		if s.Runs == s.Failed {
			continue
		}

		pnl := good
		if s.MeanPnL < 0 {
			pnl = bad
		}
		_, _ = pnl.Fprintf(w, "  pnl: mean %.2f std %.2f\n", s.MeanPnL, s.StdPnL)
		_, _ = fmt.Fprintf(w, "  return: mean %.4f p05 %.4f p50 %.4f p95 %.4f\n",
			s.MeanReturn, s.ReturnP05, s.ReturnP50, s.ReturnP95)
		_, _ = fmt.Fprintf(w, "  utilization(max): %.3f  rejection: %.3f  default: %.3f\n\n",
			s.MeanMaxUtilization, s.MeanRejectionRate, s.MeanDefaultRate)
	}
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return "[" + strings.Join(parts, " ") + "]"
}
