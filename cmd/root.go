package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/output"
	"github.com/joescharf/scrum/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store
	eng       *engine.Engine

	verbose bool
	dryRun  bool

	// nowFunc is replaceable in tests.
	nowFunc = time.Now
)

var rootCmd = &cobra.Command{
	Use:   "scrum",
	Short: "Scrum coordination - projects, sprints, backlogs, and burndown",
	Long: `scrum coordinates Scrum projects: teams and roles with permissions,
project and sprint lifecycles, a kanban pipeline for work items,
and an hours ledger that drives sprint burndown charts.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		var blocked *guard.BlockedError
		if ui != nil && errors.As(err, &blocked) {
			ui.Result(blocked.Result)
			fmt.Fprintln(os.Stderr, "Error: transition blocked")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/scrum/config.yaml)")
	rootCmd.PersistentFlags().String("as", "", "Act as this user id (default: user from config)")
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("as"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "scrum")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SCRUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "scrum"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default under stateDir.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "scrum.db"))
	viper.SetDefault("user", "")
	viper.SetDefault("project.default_sprint_days", 14)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("mcp.user", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = newLogger(ui.ErrOut)
	slog.SetDefault(logger)

	// The store opens lazily so config and version run without a database.
}

// newLogger builds the slog logger described by log.format and log.level.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("log.format") == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getEngine returns the shared engine over the shared store.
func getEngine() (*engine.Engine, error) {
	if eng != nil {
		return eng, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	eng = engine.New(s, notify.NewLog(logger), logger)
	return eng, nil
}

// currentUser returns the acting user id from --as or the config.
func currentUser() (string, error) {
	id := strings.TrimSpace(viper.GetString("user"))
	if id == "" {
		return "", fmt.Errorf("no acting user: pass --as or set user in config")
	}
	return id, nil
}

// session returns the engine and the acting user.
func session() (*engine.Engine, string, error) {
	actor, err := currentUser()
	if err != nil {
		return nil, "", err
	}
	e, err := getEngine()
	if err != nil {
		return nil, "", err
	}
	return e, actor, nil
}

func today() time.Time {
	return models.Day(nowFunc())
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseNumber parses a work item number such as "12" or "#12".
func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid work item number: %s", s)
	}
	return n, nil
}

// parseHours parses a whole number of hours.
func parseHours(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
	if err != nil {
		return 0, fmt.Errorf("invalid hours: %s", s)
	}
	return n, nil
}

// showWarnings prints non-blocking guard warnings.
func showWarnings(warnings []string) {
	ui.Result(guard.Result{Warnings: warnings})
}

// reportCheck prints a dry evaluation of a transition. A blocked result is
// returned as an error so the exit status reflects it.
func reportCheck(subject, transition string, r guard.Result) error {
	ui.Result(r)
	if r.Blocked() {
		return fmt.Errorf("%s cannot %s: %d blocking error(s)", subject, transition, len(r.Errors))
	}
	ui.Success("%s can %s", subject, transition)
	return nil
}
