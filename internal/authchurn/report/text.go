package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/diagnostics"
)

const ruleWidth = 120

// textWriter accumulates the first write error so rendering code can stay
// linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	t.printf("\n%s\n%s\n", title, strings.Repeat("-", ruleWidth))
}

func comma(n int64) string { return humanize.Comma(n) }

func writeText(w io.Writer, doc *Document, flaggedOnly bool) error {
	t := &textWriter{w: w}
	res := doc.Result
	c := doc.Counters

	t.printf("%s\n", strings.Repeat("=", ruleWidth))
	t.printf("KUBERNETES AUTH ENTITY CHURN REPORT\n")
	t.printf("%s\n", strings.Repeat("=", ruleWidth))
	if doc.RunID != "" {
		t.printf("Run:        %s\n", doc.RunID)
	}
	if len(doc.Inputs) > 0 {
		t.printf("Inputs:     %s\n", strings.Join(doc.Inputs, ", "))
	}
	t.printf("Lines:      %s read, %s parsed, %s skipped\n", comma(c.Lines), comma(c.Parsed), comma(c.Skipped))
	t.printf("Logins:     %s ok, %s failed", comma(res.Totals.Logins), comma(res.Totals.Failures))
	if c.Filtered > 0 {
		t.printf(", %s filtered out", comma(c.Filtered))
	}
	t.printf("\n")
	t.printf("Entities:   %s across %s mounts and %s workloads\n",
		comma(int64(res.Totals.Entities)), comma(int64(res.Totals.Mounts)), comma(int64(res.Totals.WorkloadLabels)))
	if doc.Truncated {
		t.printf("WARNING:    input was truncated; figures cover only the part that was read\n")
	}

	t.section("1. MOUNT SUMMARY")
	t.printf("%-44s %12s %8s %10s %10s %14s %17s %-12s\n",
		"Mount", "Logins(OK)", "Fails", "Entities", "Workloads", "Logins/Entity", "Entities/Workload", "Level")
	for _, m := range res.Mounts {
		t.printf("%-44s %12s %8s %10s %10s %14.1f %17.1f %-12s\n",
			m.MountLabel, comma(m.Successes), comma(m.Failures), comma(int64(m.Entities)),
			comma(int64(m.WorkloadLabels)), m.LoginsPerEntity, m.EntitiesPerLabel, m.Level)
	}

	t.section("2. TOP ENTITIES BY LOGIN COUNT (chatty identities)")
	if len(res.TopEntities) == 0 {
		t.printf("No entities recorded.\n")
	}
	for _, e := range res.TopEntities {
		name := e.EntityID
		if e.DisplayName != "" {
			name += " (" + e.DisplayName + ")"
		}
		t.printf("%-60s logins=%-10s mount=%s%s\n", name, comma(e.Logins), e.MountLabel, flagSuffix(e.Flags))
	}

	t.section("3. TOP WORKLOADS BY DISTINCT ENTITIES (ephemeral churn)")
	if len(res.TopWorkloads) == 0 {
		t.printf("No workload labels recorded.\n")
	}
	for _, wl := range res.TopWorkloads {
		t.printf("%-44s %-40s entities=%-8s logins=%-10s%s\n",
			wl.MountLabel, wl.WorkloadLabel, comma(int64(wl.Entities)), comma(wl.Logins), flagSuffix(wl.Flags))
	}

	rows := res.Diagnostics
	title := "4. DISTRIBUTION DIAGNOSTICS"
	if flaggedOnly {
		rows = res.Flagged()
		title += " (flagged only)"
	}
	t.section(title)
	if len(rows) == 0 {
		t.printf("No high-signal distribution anomalies detected.\n")
	}
	for _, r := range rows {
		t.printf("%-44s %-40s entities=%-6s singletons=%-6s ratio=%5.1f%% p95=%-5d%s\n",
			r.MountLabel, r.WorkloadLabel, comma(int64(r.Entities)), comma(int64(r.Singletons)),
			r.SingletonRatio*100, r.P95, flagSuffix(r.Flags))
	}

	writeGuide(t, res.Thresholds)
	return t.err
}

func flagSuffix(flags []diagnostics.Flag) string {
	if len(flags) == 0 {
		return ""
	}
	return "  [" + joinFlags(flags) + "]"
}

func writeGuide(t *textWriter, th diagnostics.Thresholds) {
	t.section("5. INTERPRETATION GUIDE")
	t.printf("Logins/Entity level: healthy < 5, mixed < 50, significant < 100, critical >= 100.\n")
	t.printf("%s: entity with >= %s logins. Token caching is broken or TTLs are too short.\n",
		diagnostics.FlagChattyEntity, comma(th.ChattyEntityLogins))
	t.printf("%s: workload with >= %s distinct entities. Each pod is minting a new identity.\n",
		diagnostics.FlagEntityChurn, comma(int64(th.ChurnEntities)))
	t.printf("%s: >= %.0f%% of a workload's entities logged in exactly once.\n",
		diagnostics.FlagSingletonHeavy, th.SingletonRatio*100)
	t.printf("  Fix: set alias_name_source=serviceaccount_uid on the kubernetes auth role.\n")
	t.printf("%s: p95 logins per entity >= %s. A few identities re-authenticate constantly.\n",
		diagnostics.FlagHighP95, comma(th.P95Logins))
}
