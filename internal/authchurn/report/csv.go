package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/diagnostics"
)

type csvTable struct {
	name  string
	write func(io.Writer) error
}

func csvTables(res *diagnostics.Result, flaggedOnly bool) []csvTable {
	return []csvTable{
		{"mounts", func(w io.Writer) error { return writeMountsCSV(w, res) }},
		{"top_entities", func(w io.Writer) error { return writeEntitiesCSV(w, res) }},
		{"top_workloads", func(w io.Writer) error { return writeWorkloadsCSV(w, res) }},
		{"diagnostics", func(w io.Writer) error { return writeDiagnosticsCSV(w, res, flaggedOnly) }},
	}
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeMountsCSV(w io.Writer, res *diagnostics.Result) error {
	rows := make([][]string, 0, len(res.Mounts))
	for _, m := range res.Mounts {
		rows = append(rows, []string{
			m.MountLabel,
			m.MountKey,
			itoa(m.Successes),
			itoa(m.Failures),
			strconv.Itoa(m.Entities),
			strconv.Itoa(m.WorkloadLabels),
			ftoa(m.LoginsPerEntity),
			ftoa(m.EntitiesPerLabel),
			string(m.Level),
		})
	}
	return writeRows(w, []string{
		"mount", "mount_key", "successful_logins", "failed_logins", "entities",
		"workload_labels", "logins_per_entity", "entities_per_label", "churn_level",
	}, rows)
}

func writeEntitiesCSV(w io.Writer, res *diagnostics.Result) error {
	rows := make([][]string, 0, len(res.TopEntities))
	for _, e := range res.TopEntities {
		rows = append(rows, []string{
			e.EntityID,
			e.DisplayName,
			itoa(e.Logins),
			e.MountLabel,
			strconv.Itoa(e.Mounts),
			formatTime(e.FirstSeen),
			formatTime(e.LastSeen),
			joinFlags(e.Flags),
		})
	}
	return writeRows(w, []string{
		"entity_id", "display_name", "logins", "mount", "mounts", "first_seen", "last_seen", "flags",
	}, rows)
}

func writeWorkloadsCSV(w io.Writer, res *diagnostics.Result) error {
	rows := make([][]string, 0, len(res.TopWorkloads))
	for _, wl := range res.TopWorkloads {
		rows = append(rows, []string{
			wl.MountLabel,
			wl.WorkloadLabel,
			strconv.Itoa(wl.Entities),
			itoa(wl.Logins),
			joinFlags(wl.Flags),
		})
	}
	return writeRows(w, []string{"mount", "workload", "entities", "logins", "flags"}, rows)
}

func writeDiagnosticsCSV(w io.Writer, res *diagnostics.Result, flaggedOnly bool) error {
	src := res.Diagnostics
	if flaggedOnly {
		src = res.Flagged()
	}
	rows := make([][]string, 0, len(src))
	for _, r := range src {
		rows = append(rows, []string{
			r.MountLabel,
			r.WorkloadLabel,
			strconv.Itoa(r.Entities),
			strconv.Itoa(r.Singletons),
			strconv.FormatFloat(r.SingletonRatio, 'f', 4, 64),
			itoa(r.P95),
			itoa(r.Logins),
			joinFlags(r.Flags),
		})
	}
	return writeRows(w, []string{
		"mount", "workload", "entities", "singletons", "singleton_ratio", "p95_logins_per_entity", "logins", "flags",
	}, rows)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) }

func joinFlags(flags []diagnostics.Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
