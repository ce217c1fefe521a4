// Package main is the entry point for the personad CLI.
// personad turns lightweight persona definitions into validated persona
// specs, platform prompt configs, and versioned delivery packs, served
// from the command line or over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/normanking/personad/internal/config"
	"github.com/normanking/personad/internal/data"
	"github.com/normanking/personad/internal/logging"
	"github.com/normanking/personad/internal/pipeline"
	"github.com/normanking/personad/internal/score"
	"github.com/normanking/personad/internal/server"
	"github.com/normanking/personad/internal/spec"
)

var (
	// Version information (set at build time)
	version = "0.1.0"

	cfgPath  string
	logLevel string
	jsonOut  bool

	cfg *config.Config
	log *logging.Logger

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "personad",
		Short: "personad - persona spec pipeline and delivery service",
		Long: titleStyle.Render("personad") + `

Turns lightweight persona definitions into deployable AI personas:
• Normalize and validate YAML/JSON persona definitions
• Generate system prompts with OpenAI and Claude configs
• Score build confidence and generate behavioral test scenarios
• Package versioned delivery packs, on disk and in SQLite

` + dimStyle.Render("Use 'personad [command] --help' for more information."),
		PersistentPreRunE: initLogging,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.personad/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON instead of styled output")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("personad v%s\n", version)
		},
	})

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(versionsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return err
	}

	logCfg := cfg.Logging.ToLoggerConfig()
	if logLevel != "" {
		logCfg.Level = logging.ParseLevel(logLevel)
	}
	if cmd.Name() != "serve" {
		// One-shot commands keep the terminal for styled output and log
		// to file only. serve honors the configured console writer.
		logCfg.Console = false
	}

	log, err = logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
		log = logging.Nop()
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// newPipeline builds a pipeline against the configured output root. The
// caller attaches a store when the command needs the database.
func newPipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	opts = append(opts, pipeline.WithLogger(log.Component("pipeline")))
	return pipeline.New(cfg.Storage.OutputRoot, opts...)
}

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var host string
	var port int
	var dataDir string
	var outputRoot string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the persona pipeline HTTP API",
		Long: `Run the HTTP API server.

The server exposes the full pipeline over REST: assess, build, test,
and deploy personas, plus read endpoints for the pack inventory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if dataDir != "" {
				cfg.Storage.DataDir = dataDir
			}
			if outputRoot != "" {
				cfg.Storage.OutputRoot = outputRoot
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := data.NewDB(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("failed to open persona database: %w", err)
			}
			defer store.Close()

			pipe := newPipeline(pipeline.WithStore(store))
			srv := server.New(cfg.Server, pipe, log.Component("server"))

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			fmt.Printf("\n%s\n", titleStyle.Render("personad API"))
			fmt.Printf("  URL:    http://%s\n", cfg.Server.Addr())
			fmt.Printf("  Output: %s\n", cfg.Storage.OutputRoot)
			fmt.Printf("  Data:   %s\n", cfg.Storage.DataDir)
			fmt.Printf("\nPress Ctrl+C to stop...\n")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-sigChan:
			}

			fmt.Println("\nShutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (overrides config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "database directory (overrides config)")
	cmd.Flags().StringVar(&outputRoot, "output-root", "", "delivery pack output root (overrides config)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// PIPELINE COMMANDS (assess / build / test / deploy)
// ═══════════════════════════════════════════════════════════════════════════════

func assessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess [file]",
		Short: "Assess a persona definition without writing anything",
		Long: `Assess a persona definition file (YAML or JSON).

Runs normalization, validation, scenario generation, and confidence
scoring, then prints the result. Nothing is written to disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := spec.LoadRaw(args[0])
			if err != nil {
				return err
			}

			res := newPipeline().Assess(raw)
			if jsonOut {
				return printJSON(res)
			}

			fmt.Println()
			fmt.Println(titleStyle.Render("Assessment: " + res.PersonaName))
			fmt.Println()

			validity := successStyle.Render("✓ valid")
			if !res.SpecValid {
				validity = errorStyle.Render("✗ invalid")
			}
			fmt.Printf("  Spec:       %s %s\n", validity,
				dimStyle.Render(fmt.Sprintf("(%d/%d checks passed)", res.Validation.ChecksPassed, res.Validation.ChecksRun)))
			fmt.Printf("  Confidence: %s %s\n", gradeBadge(res.Confidence.Grade), score.Format(res.Confidence.Score))
			fmt.Printf("  Scenarios:  %d\n", res.TestScenarios)

			if len(res.Validation.Errors) > 0 || len(res.Validation.Warnings) > 0 {
				fmt.Println()
				for _, issue := range res.Validation.Errors {
					fmt.Printf("  %s %s\n", errorStyle.Render("✗"), issue.Message)
				}
				for _, issue := range res.Validation.Warnings {
					fmt.Printf("  %s %s\n", warnStyle.Render("!"), issue.Message)
				}
			}

			fmt.Println()
			fmt.Println(dimStyle.Render(res.Hint))
			return nil
		},
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [file]",
		Short: "Build a versioned delivery pack from a persona definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := spec.LoadRaw(args[0])
			if err != nil {
				return err
			}

			res, rej, err := newPipeline().Build(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if rej != nil {
				if jsonOut {
					_ = printJSON(rej)
				} else {
					fmt.Println()
					fmt.Println(errorStyle.Render("✗ " + rej.Reason))
					for _, issue := range rej.Errors {
						fmt.Printf("  %s %s\n", errorStyle.Render("✗"), issue.Message)
					}
				}
				return fmt.Errorf("validation failed")
			}
			if jsonOut {
				return printJSON(res)
			}

			fmt.Println()
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ Build complete: %s v%d", res.PersonaName, res.Version)))
			fmt.Println()
			fmt.Printf("  Output:     %s\n", res.OutputDir)
			fmt.Printf("  Confidence: %s %s\n", gradeBadge(res.Confidence.Grade), score.Format(res.Confidence.Score))
			fmt.Printf("  Scenarios:  %d\n", res.TestScenarios)
			fmt.Println()
			for _, f := range res.Files {
				fmt.Printf("  %s\n", dimStyle.Render(f))
			}
			return nil
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [file]",
		Short: "Generate the behavioral test suite for a persona definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := spec.LoadRaw(args[0])
			if err != nil {
				return err
			}

			res := newPipeline().TestSuite(raw)
			if jsonOut {
				return printJSON(res)
			}

			fmt.Println()
			fmt.Println(titleStyle.Render(fmt.Sprintf("Test Suite: %s", res.PersonaName)))
			fmt.Println(dimStyle.Render(fmt.Sprintf("%d scenarios across %d categories", res.TotalScenarios, len(res.Categories))))
			fmt.Println()

			for _, sc := range res.Scenarios {
				fmt.Printf("%s %s %s\n", successStyle.Render("●"), sc.ID, dimStyle.Render("["+sc.Category+"]"))
				fmt.Printf("  %s\n", sc.Description)
				fmt.Printf("  %s\n", dimStyle.Render("User: "+sc.UserMessage))
				fmt.Println()
			}
			return nil
		},
	}
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy [file]",
		Short: "Build a persona and deploy it to the database",
		Long: `Build a persona and deploy it.

Runs the full build pipeline, writes the delivery pack to disk, then
records the deployment and its artifacts in the SQLite database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := spec.LoadRaw(args[0])
			if err != nil {
				return err
			}

			store, err := data.NewDB(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("failed to open persona database: %w", err)
			}
			defer store.Close()

			res, rej, err := newPipeline(pipeline.WithStore(store)).Deploy(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if rej != nil {
				if jsonOut {
					_ = printJSON(rej)
				} else {
					fmt.Println()
					fmt.Println(errorStyle.Render("✗ " + rej.Reason))
					for _, issue := range rej.Errors {
						fmt.Printf("  %s %s\n", errorStyle.Render("✗"), issue.Message)
					}
					for _, flag := range rej.Flags {
						fmt.Printf("  %s %s\n", warnStyle.Render("⚑"), flag.Message)
					}
				}
				return fmt.Errorf("deploy rejected")
			}
			if jsonOut {
				return printJSON(res)
			}

			fmt.Println()
			fmt.Println(successStyle.Render("✓ Deployed: " + res.PersonaName))
			fmt.Println()
			fmt.Printf("  DB version:   %d\n", res.DBVersion)
			fmt.Printf("  Disk version: v%d\n", res.FSVersion)
			fmt.Printf("  Output:       %s\n", res.OutputDir)
			fmt.Printf("  Confidence:   %s %s\n", gradeBadge(res.Confidence.Grade), score.Format(res.Confidence.Score))
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// INVENTORY COMMANDS (list / show / versions)
// ═══════════════════════════════════════════════════════════════════════════════

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personas with delivery packs on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			personas := newPipeline().List()
			if jsonOut {
				return printJSON(map[string]any{"total": len(personas), "personas": personas})
			}

			if len(personas) == 0 {
				fmt.Println(dimStyle.Render("No personas found. Build one with 'personad build <file>'"))
				return nil
			}

			fmt.Println(titleStyle.Render("Personas"))
			fmt.Println()
			for _, p := range personas {
				fmt.Printf("%s %s\n", successStyle.Render("●"), p.Slug)
				fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("%d version(s), latest v%d", p.TotalVersions, p.LatestVersion)))
				fmt.Println()
			}
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show the latest delivery pack for a persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := newPipeline().Show(spec.Slugify(args[0]))
			if !ok {
				return fmt.Errorf("persona %q not found", args[0])
			}
			if jsonOut {
				return printJSON(res)
			}

			fmt.Println()
			fmt.Println(titleStyle.Render("Persona: " + res.Slug))
			fmt.Println()
			if res.PersonaName != nil {
				fmt.Printf("  Name:       %s\n", *res.PersonaName)
			}
			fmt.Printf("  Latest:     %s %s\n", res.VersionStr,
				dimStyle.Render(fmt.Sprintf("(%d total)", res.TotalVersions)))
			fmt.Printf("  Path:       %s\n", res.Path)
			if res.ConfidenceGrade != nil && res.ConfidenceScore != nil {
				fmt.Printf("  Confidence: %s %s\n", gradeBadge(*res.ConfidenceGrade), score.Format(*res.ConfidenceScore))
			}
			fmt.Println()
			for _, f := range res.Files {
				fmt.Printf("  %s\n", dimStyle.Render(f))
			}
			return nil
		},
	}
}

func versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions [name]",
		Short: "List every delivery pack version for a persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := newPipeline().Versions(spec.Slugify(args[0]))
			if set.TotalVersions == 0 {
				return fmt.Errorf("persona %q has no versions", args[0])
			}
			if jsonOut {
				return printJSON(set)
			}

			fmt.Println()
			fmt.Println(titleStyle.Render("Versions: " + set.Slug))
			fmt.Println()
			for _, v := range set.Versions {
				line := v.VersionStr
				if v.ConfidenceGrade != nil && v.ConfidenceScore != nil {
					line += fmt.Sprintf("  %s %s", gradeBadge(*v.ConfidenceGrade), score.Format(*v.ConfidenceScore))
				}
				fmt.Printf("  %s\n", line)
				fmt.Printf("    %s\n", dimStyle.Render(v.Path))
			}
			fmt.Println()
			fmt.Printf("  Next version: v%d\n", set.NextVersion)
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return printJSON(cfg)
			}

			fmt.Println("personad Configuration:")
			fmt.Println("───────────────────────")
			fmt.Printf("Server Address: %s\n", cfg.Server.Addr())
			fmt.Printf("CORS Origins:   %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))
			fmt.Printf("Output Root:    %s\n", cfg.Storage.OutputRoot)
			fmt.Printf("Data Dir:       %s\n", cfg.Storage.DataDir)
			fmt.Printf("Log Level:      %s\n", cfg.Logging.Level)
			fmt.Printf("Log Dir:        %s\n", cfg.Logging.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			fmt.Println(config.DefaultConfigPath())
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// OUTPUT HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// gradeBadge renders a letter grade in its signal color.
func gradeBadge(grade string) string {
	var color string
	switch grade {
	case "A", "B":
		color = "#10B981"
	case "C":
		color = "#F59E0B"
	case "D":
		color = "#F97316"
	default:
		color = "#EF4444"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(grade)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
