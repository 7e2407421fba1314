package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
)

var (
	cfgFile  string
	logLevel string
	Version  = "v0.1"
	build    = "dev"
	rootCmd  = &cobra.Command{
		Use:          "authchurn",
		Short:        "AuthChurn - Kubernetes auth churn analysis for Vault audit logs",
		Long:         "AuthChurn: find entity churn and chatty identities behind Kubernetes/OpenShift auth mounts in Vault audit logs.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			v.SetEnvPrefix("AUTHCHURN")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.AutomaticEnv()

			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", cfgFile, err)
				}
			} else if _, err := os.Stat("config.yaml"); err == nil {
				// default: ./config.yaml when present
				v.SetConfigFile("config.yaml")
				if err := v.ReadInConfig(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults and flags.\n", err)
				}
			}
			if logLevel != "" {
				v.Set("logging.level", logLevel)
			}
			if err := config.Load(v); err != nil {
				return err
			}

			cfg := config.Get()
			if err := logger.InitLogger(logger.LogConfig{
				Level:       cfg.Logging.Level,
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
			}); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	err := rootCmd.Execute()
	// os.Exit skips deferred calls
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
