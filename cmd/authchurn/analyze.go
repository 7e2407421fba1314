package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/runner"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file ...]",
	Short: "Aggregate Vault audit logs and report auth churn diagnostics",
	Long: `Read one or more Vault audit logs (plain, .gz or .zst; "-" or no argument
reads stdin), aggregate Kubernetes/OpenShift logins per mount, entity and
workload, and report chatty entities, churning workloads and flagged rows.`,
	RunE: runAnalyze,
}

var flagAll bool

// analyzeFlagKeys maps analyze flags to the config keys they override.
var analyzeFlagKeys = map[string]string{
	"chatty-logins":   "thresholds.chatty_entity_logins",
	"churn-entities":  "thresholds.churn_entities",
	"singleton-ratio": "thresholds.singleton_ratio",
	"p95-logins":      "thresholds.p95_logins",
	"top":             "thresholds.top_n",
	"format":          "output.format",
	"output-dir":      "output.dir",
	"reject-file":     "output.reject_file",
	"mounts-file":     "lookups.mounts_file",
	"entities-file":   "lookups.entities_file",
	"mount":           "filters.mounts",
	"namespace":       "filters.namespaces",
	"workers":         "input.workers",
	"run-log":         "logging.run_log",
}

func init() {
	f := analyzeCmd.Flags()
	f.Int("chatty-logins", 200, "logins per entity at which it is flagged CHATTY_ENTITY")
	f.Int("churn-entities", 50, "distinct entities per workload at which it is flagged ENTITY_CHURN")
	f.Float64("singleton-ratio", 0.80, "singleton ratio at which a row is flagged SINGLETON_HEAVY")
	f.Int("p95-logins", 10, "p95 logins per entity at which a row is flagged HIGH_P95")
	f.Int("top", 15, "rows kept in the top entity/workload tables (0 = all)")
	f.String("format", "text", "report format: text|csv|json")
	f.String("output-dir", "", "write report files to this directory instead of stdout")
	f.String("reject-file", "", "file to store unparsable lines")
	f.String("mounts-file", "", "mount accessor lookup table (JSON or YAML)")
	f.String("entities-file", "", "entity id lookup table (JSON or YAML)")
	f.StringSlice("mount", nil, "only count logins on these mounts (accessor or path, repeatable)")
	f.StringSlice("namespace", nil, "only count logins from these namespaces (repeatable)")
	f.Int("workers", 0, "aggregation workers (default GOMAXPROCS)")
	f.String("run-log", "", "append an NDJSON run summary to this file")
	f.BoolVar(&flagAll, "all", false, "report every diagnostic row, not only flagged ones")

	for name, key := range analyzeFlagKeys {
		_ = viper.BindPFlag(key, f.Lookup(name))
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	// Override config with command line flags
	if flagAll {
		cfg.Output.FlaggedOnly = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := runner.RunAnalyze(ctx, args, cmd.OutOrStdout(), cfg)
	return err
}
