package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/Sternrassler/job-site-monitor/pkg/listing"
)

var sourceLabels = map[listing.Source]string{
	listing.SourceNative:   "native",
	listing.SourcePartnerA: "partner A",
	listing.SourcePartnerB: "partner B",
}

// Summary renders a plain-text summary of the report.
func Summary(rep *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job listing report %s (%s)\n", rep.ReportDate, rep.ID)
	writeResult(&b, "All listings", rep.All)
	writeResult(&b, "Today", rep.Today)
	return b.String()
}

// ResultSummary renders one estimate.
func ResultSummary(title string, res *estimator.Result) string {
	var b strings.Builder
	writeResult(&b, title, res)
	return b.String()
}

func writeResult(b *strings.Builder, title string, res *estimator.Result) {
	if res == nil {
		fmt.Fprintf(b, "%s: unavailable\n", title)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", title, FormatNumber(res.TotalCount))
	if res.TotalCount == 0 {
		b.WriteString("  no listings\n")
		return
	}
	for _, src := range listing.Sources {
		n := res.Count(src)
		fmt.Fprintf(b, "  %-10s %9s (%s%%)\n", sourceLabels[src]+":", FormatNumber(n), Percentage(n, res.TotalCount))
	}
	for _, src := range []listing.Source{listing.SourcePartnerA, listing.SourcePartnerB} {
		if rng := res.Range(src); rng != nil {
			fmt.Fprintf(b, "  %s pages: %d-%d\n", sourceLabels[src], rng.StartPage, rng.EndPage)
		}
	}
	if res.NativeClamped {
		b.WriteString("  warning: partner counts exceeded the total; native clamped to 0\n")
	}
	fmt.Fprintf(b, "  requests: %d, elapsed: %.2fs\n", res.RequestCount, res.ElapsedSeconds)
}

// FormatNumber formats n with comma thousands separators.
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Percentage returns part/total as a percentage with one decimal, or "0.0"
// when total is 0.
func Percentage(part, total int) string {
	if total == 0 {
		return "0.0"
	}
	return strconv.FormatFloat(float64(part)/float64(total)*100, 'f', 1, 64)
}
