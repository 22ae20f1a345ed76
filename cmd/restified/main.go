package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/auth"
	"github.com/ersinghrajkr/restified/pkg/restified"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "restified",
	Short: "Fluent API test framework with caching, deduplication and multi-protocol clients",
	Long: `Restified is an API test framework built around a given/when/then chain.

Test suites embed the framework as a library; this binary inspects and
verifies suite configuration before a run.
`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   showVersion,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and report validation problems",
	RunE:  runValidate,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect to every configured client and run the health checks",
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().Bool("strict", false, "Fail on configuration and startup problems instead of degrading")
	checkCmd.Flags().Duration("timeout", 30*time.Second, "Overall timeout for connectivity checks")

	bindFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkCmd)
}

func bindFlags(cmd *cobra.Command) {
	viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("gracefulMode.strict", cmd.PersistentFlags().Lookup("strict"))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath, viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel, err := cmd.Flags().GetString("log-level"); err == nil && logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if strict, err := cmd.Flags().GetBool("strict"); err == nil && cmd.Flags().Changed("strict") {
		cfg.Graceful.Strict = strict
	}
	return cfg, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ok := color.New(color.FgGreen, color.Bold)
	ok.Println("Configuration is valid")
	fmt.Printf("Environment:    %s\n", cfg.Environment.Name)
	fmt.Printf("Clients:        %d\n", len(cfg.Clients))
	for name, client := range cfg.Clients {
		fmt.Printf("  - %s (%s)\n", name, client.Kind)
	}
	fmt.Printf("Authentication: %v\n", cfg.Auth.Enabled())
	fmt.Printf("Health checks:  %d\n", len(cfg.HealthChecks))
	fmt.Printf("Strict mode:    %v\n", cfg.Graceful.Strict)
	if cfg.Reporting.Enabled {
		fmt.Printf("Reporting:      %v into %s\n", cfg.Reporting.Formats, cfg.Reporting.OutputDir)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := logger.NewLogger(&cfg.Log)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Health checks run explicitly below, with per-probe output.
	checks := cfg.HealthChecks
	cfg.HealthChecks = nil

	suite, err := restified.New(cfg, restified.WithLogger(log), restified.WithReporters())
	if err != nil {
		return err
	}
	defer suite.Cleanup(context.Background())

	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	failures := 0
	if cfg.Auth.Enabled() {
		if err := suite.BeforeAll(ctx); err != nil {
			fail.Printf("fail auth: %v\n", err)
			failures++
		} else if suite.Degraded() {
			fail.Println("fail auth: degraded, fallback in use")
			failures++
		} else {
			pass.Println("ok   auth: token acquired")
		}
	}

	for _, result := range auth.RunHealthChecks(ctx, checks, suite.Clients(), log) {
		if result.Healthy() {
			pass.Printf("ok   %s\n", result.Name)
		} else {
			fail.Printf("fail %s: %v\n", result.Name, result.Err)
			failures++
		}
	}
	for name, err := range suite.Clients().HealthCheckAll(ctx) {
		if err == nil {
			pass.Printf("ok   client %s\n", name)
		} else {
			fail.Printf("fail client %s: %v\n", name, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d checks failed", failures)
	}
	return nil
}

func showVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("Restified version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", buildDate)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
