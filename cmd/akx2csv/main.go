package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arkoon-rule-exporter/internal/config"
	"arkoon-rule-exporter/internal/export"
	"arkoon-rule-exporter/internal/index"
	"arkoon-rule-exporter/internal/model"
	"arkoon-rule-exporter/internal/parser"
	"arkoon-rule-exporter/internal/report"
	"arkoon-rule-exporter/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const dbTimeout = 30 * time.Second

// now dates the report file name and the archive rows.
var now = time.Now

var (
	configFile   string
	outDir       string
	logLevel     string
	logFile      string
	expandGroups bool
	dbDSN        string
	dbTable      string
	noColor      bool
)

func newRootCmd() *cobra.Command {
	defaults := config.Default()
	rootCmd := &cobra.Command{
		Use:   "akx2csv <xmlfile> <hostname>",
		Short: "Export Arkoon firewall rules to CSV",
		Long: `akx2csv reads an Arkoon XML configuration export, resolves the objects
	referenced by every rule and writes the rule set as <hostname>_<YYYYMMDD>_RULES.csv.`,
		Args: validateArgs,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&outDir, "out-dir", "o", defaults.OutDir, "Directory the CSV report is written to")
	rootCmd.Flags().StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.Flags().StringVar(&logFile, "log-file", defaults.LogFile, "Log file path (default: stderr)")
	rootCmd.Flags().BoolVar(&expandGroups, "expand-groups", defaults.ExpandGroups, "Replace group references by their member objects")
	rootCmd.Flags().StringVar(&dbDSN, "db", defaults.DB, "MariaDB connection string to archive the exported rules")
	rootCmd.Flags().StringVar(&dbTable, "db-table", defaults.DBTable, "Table used with --db")
	rootCmd.Flags().BoolVar(&noColor, "no-color", defaults.NoColor, "Disable colored progress output")

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(2)(cmd, args); err != nil {
		return err
	}
	hostname := args[1]
	if hostname == "" || strings.ContainsAny(hostname, `/\`) {
		return fmt.Errorf("invalid hostname %q", hostname)
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)
	cmd.SilenceUsage = true

	// --- 1. Setup Logging ---
	logger := setupLogger(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	xmlPath, hostname := args[0], args[1]
	rep := report.New(cmd.OutOrStdout(), !cfg.NoColor)
	startTime := now()
	slog.Info("Starting Arkoon rule export", "file", xmlPath, "hostname", hostname)

	// --- 2. Load Configuration Export ---
	rep.Step("Loading file")
	doc, err := parser.Load(xmlPath)
	if err != nil {
		rep.Failed()
		slog.Error("Failed to load configuration export", "path", xmlPath, "error", err)
		return err
	}
	rep.Done("")

	// --- 3. Build Object Index ---
	rep.Step("Creating database...")
	idx := index.Build(doc)
	rep.Done(fmt.Sprintf("%d objects", idx.Len()))
	slog.Info("Object index built", "objects", idx.Len())

	// --- 4. Export Rules ---
	outPath := filepath.Join(cfg.OutDir, export.FileName(hostname, startTime))
	rep.Step("Creating output file " + outPath)
	rules, err := export.Collect(doc, idx, export.Options{ExpandGroups: cfg.ExpandGroups})
	if err != nil {
		rep.Failed()
		slog.Error("Failed to export rules", "error", err)
		return err
	}
	if err := export.WriteFile(outPath, rules); err != nil {
		rep.Failed()
		slog.Error("Failed to write report", "path", outPath, "error", err)
		return err
	}
	if len(rules) == 0 {
		rep.Failed()
		slog.Error("No rules found in configuration export", "path", xmlPath)
		return export.ErrNoRules
	}
	rep.Done(fmt.Sprintf("%d rules", len(rules)))

	// --- 5. Archive ---
	if cfg.DB != "" {
		rep.Step("Archiving rules")
		if err := archiveRules(cmd.Context(), cfg.DB, cfg.DBTable, hostname, startTime, rules); err != nil {
			rep.Failed()
			slog.Error("Failed to archive rules", "table", cfg.DBTable, "error", err)
			return err
		}
		rep.Done(cfg.DBTable)
	}

	slog.Info("Export complete", "rules", len(rules), "output_file", outPath, "duration", time.Since(startTime))
	return nil
}

// applyFlags overrides configuration values with the flags set on the
// command line.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("out-dir") {
		cfg.OutDir = outDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("expand-groups") {
		cfg.ExpandGroups = expandGroups
	}
	if flags.Changed("db") {
		cfg.DB = dbDSN
	}
	if flags.Changed("db-table") {
		cfg.DBTable = dbTable
	}
	if flags.Changed("no-color") {
		cfg.NoColor = noColor
	}
}

func archiveRules(ctx context.Context, dsn, table, hostname string, exportedAt time.Time, rules []model.Rule) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	s, err := store.NewMariaDBStore(ctx, dsn, table)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := s.SaveRules(ctx, hostname, exportedAt, rules); err != nil {
		return fmt.Errorf("archive for %s not updated: %w", hostname, err)
	}
	return nil
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// The logger does not exist yet, so a bad path silently falls back to stderr.
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}
