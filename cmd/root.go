package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/output"
	"github.com/joescharf/zira/internal/store"
	"github.com/joescharf/zira/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	service   *tracker.Service
	directory *identity.StaticDirectory

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zira",
	Short: "Zira - sprint boards and issue tracking for small teams",
	Long: `zira tracks projects, sprints, and issues on a kanban board.
Projects belong to an organization; sprints move PLANNED -> ACTIVE ->
COMPLETED, and issues keep a stable position within their board column.`,
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

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/zira/config.yaml)")
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

		configDir := filepath.Join(home, ".config", "zira")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ZIRA")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "zira")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "zira.db"))
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("identity.credential", "")
	viper.SetDefault("identity.users", []map[string]any{})
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Store and service initialize lazily so config/version commands run
	// without a db.
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

// getDirectory builds the static identity directory from config. Each
// entry under identity.users maps a credential to a caller.
func getDirectory() *identity.StaticDirectory {
	if directory != nil {
		return directory
	}

	d := identity.NewStaticDirectory()

	var entries []struct {
		Credential     string `mapstructure:"credential"`
		UserID         string `mapstructure:"user_id"`
		OrganizationID string `mapstructure:"organization_id"`
		Role           string `mapstructure:"role"`
	}
	if err := viper.UnmarshalKey("identity.users", &entries); err == nil {
		for _, e := range entries {
			role := identity.Role(e.Role)
			if role == "" {
				role = identity.RoleMember
			}
			d.AddCredential(e.Credential, identity.Caller{
				UserID:         e.UserID,
				OrganizationID: e.OrganizationID,
				Role:           role,
			})
		}
	}

	directory = d
	return directory
}

// getService returns the shared tracker service, initializing it on
// first call.
func getService() (*tracker.Service, error) {
	if service != nil {
		return service, nil
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}

	service = tracker.NewService(s, getDirectory())
	return service, nil
}

// getCaller resolves the CLI's own identity from the configured
// credential.
func getCaller() (identity.Caller, error) {
	credential := viper.GetString("identity.credential")
	if credential == "" {
		return identity.Caller{}, fmt.Errorf("no identity configured: set identity.credential in the config file (run 'zira config init')")
	}

	caller, err := getDirectory().ResolveCaller(rootCmd.Context(), credential)
	if err != nil {
		return identity.Caller{}, fmt.Errorf("identity.credential does not match any identity.users entry")
	}
	return caller, nil
}
