package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/report"
	"github.com/Sternrassler/job-site-monitor/pkg/sampling"
	"github.com/Sternrassler/job-site-monitor/pkg/store"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func periodTitle(period client.Period) string {
	if period == client.PeriodToday {
		return "Today"
	}
	return "All listings"
}

func regionalSummary(res *sampling.RegionalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s): %s listings\n", res.RegionCode, res.RegionName, res.Period, report.FormatNumber(res.TotalCount))
	if res.TotalCount == 0 {
		b.WriteString("  no listings\n")
		return b.String()
	}

	n := res.Counts
	fmt.Fprintf(&b, "  native:    %9s (%s%%) paid %s, free %s\n",
		report.FormatNumber(n.Native), report.Percentage(n.Native, res.TotalCount),
		report.FormatNumber(n.NativePaid), report.FormatNumber(n.NativeFree))
	fmt.Fprintf(&b, "  partner A: %9s (%s%%)\n", report.FormatNumber(n.PartnerA), report.Percentage(n.PartnerA, res.TotalCount))
	fmt.Fprintf(&b, "  partner B: %9s (%s%%)\n", report.FormatNumber(n.PartnerB), report.Percentage(n.PartnerB, res.TotalCount))
	if res.Extrapolated {
		fmt.Fprintf(&b, "  extrapolated from %s listings on %d pages\n", report.FormatNumber(res.AnalyzedCount), res.PagesAnalyzed)
	}
	if len(res.FailedPages) > 0 {
		fmt.Fprintf(&b, "  skipped pages: %v\n", res.FailedPages)
	}
	for _, s := range res.Samples {
		fmt.Fprintf(&b, "    [%s] %s %s\n", s.Source, s.RecruitNo, s.Title)
	}
	return b.String()
}

func pagesSummary(stats []sampling.PageStats) string {
	if len(stats) == 0 {
		return "no pages fetched\n"
	}
	var b strings.Builder
	for _, p := range stats {
		fmt.Fprintf(&b, "page %3d: %3d listings | native %3d (paid %d) | A %3d | B %3d\n",
			p.Page, p.Total, p.Counts.Native, p.Counts.NativePaid, p.Counts.PartnerA, p.Counts.PartnerB)
		for _, s := range p.Samples {
			fmt.Fprintf(&b, "    [%s] %s %s\n", s.Source, s.RecruitNo, s.Title)
		}
	}
	return b.String()
}

func historySummary(records []store.Record) string {
	if len(records) == 0 {
		return "no stored estimates\n"
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s  %-5s total %9s  native %9s  A %7s  B %7s\n",
			r.GeneratedAt.Local().Format("2006-01-02 15:04"), r.Period,
			report.FormatNumber(r.TotalCount), report.FormatNumber(r.NativeCount),
			report.FormatNumber(r.PartnerACount), report.FormatNumber(r.PartnerBCount))
	}
	return b.String()
}
