package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/orchestration"
	"github.com/orchid-cli/orchid/internal/output"
	"github.com/orchid-cli/orchid/internal/session"
	"github.com/orchid-cli/orchid/internal/store"
	"github.com/orchid-cli/orchid/internal/sync"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui         *output.UI
	dataStore  store.Store
	apiClient  *api.Client
	sessionMgr *session.Manager
	syncClient *sync.Client
	orchClient *orchestration.Client

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "orchid",
	Short: "Orchid - run AI agent tasks from the terminal",
	Long: `orchid is a client for the agent task orchestration service.
It manages your session, creates and tracks tasks, uploads content
for agents to work with, and drives multi-step orchestrated workflows.`,
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
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/orchid/config.yaml)")
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

		configDir := filepath.Join(home, ".config", "orchid")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ORCHID")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "orchid")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "orchid.db"))
	viper.SetDefault("api.base_url", "http://localhost:5000/api")
	viper.SetDefault("api.timeout", 30*time.Second)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Store, session, and API clients are initialized lazily so config
	// and version commands run without a db or network setup.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getSession returns the session manager with its API client attached,
// restoring any persisted credentials on first call.
func getSession() (*session.Manager, error) {
	if sessionMgr != nil {
		return sessionMgr, nil
	}

	st, err := getStore()
	if err != nil {
		return nil, err
	}

	sessionMgr = session.NewManager(st, ui)
	apiClient = api.New(viper.GetString("api.base_url"), viper.GetDuration("api.timeout"), sessionMgr)
	sessionMgr.AttachClient(apiClient)
	sessionMgr.Restore(context.Background())
	return sessionMgr, nil
}

// getSync returns the task sync client.
func getSync() (*sync.Client, error) {
	if syncClient != nil {
		return syncClient, nil
	}
	if _, err := getSession(); err != nil {
		return nil, err
	}
	syncClient = sync.New(apiClient, dataStore, ui)
	return syncClient, nil
}

// getOrch returns the orchestration client.
func getOrch() (*orchestration.Client, error) {
	if orchClient != nil {
		return orchClient, nil
	}
	if _, err := getSession(); err != nil {
		return nil, err
	}
	orchClient = orchestration.New(apiClient, dataStore, ui)
	return orchClient, nil
}

// requireAuth returns the session manager, failing with a login hint when
// no session is live.
func requireAuth() (*session.Manager, error) {
	mgr, err := getSession()
	if err != nil {
		return nil, err
	}
	if !mgr.Authenticated() {
		return nil, fmt.Errorf("not logged in (run 'orchid login')")
	}
	return mgr, nil
}
