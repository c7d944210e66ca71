package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/provenance/internal/engine"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "provenance",
	Short: "Provenance - claim verification and media selection for the techno archive",
	Long: `Provenance extracts claims about archive entities from source documents,
keeps every claim tied to a verbatim quote of its source, and reconciles them
into facts: verified, unverified, or openly conflicting.

It never picks a winner between credible sources that disagree.

It also vets candidate images per entity and keeps at most one selected.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("provenance v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.provenance/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("store", "", "store driver (memory, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "postgres DSN")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".provenance"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// PROVENANCE_STORE_DSN overrides store.dsn
	viper.SetEnvPrefix("PROVENANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every default key so env overrides reach Unmarshal
func setDefaults(cfg *model.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
				walk(key, sub)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)
	return nil
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func bindFlag(key string, cmd *cobra.Command, name string) error {
	return viper.BindPFlag(key, cmd.Flags().Lookup(name))
}

func newLogger(cfg *model.Config) (*logger.Logger, error) {
	mode := cfg.Log.Mode
	if !verbose && mode == "dev" {
		// Quiet console unless asked; progress goes to stderr anyway
		mode = "prod"
	}
	return logger.New(mode)
}

// session is an opened engine with its logger and a signal-aware context
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *model.Config
	log    *logger.Logger
	engine *engine.Engine
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	if memoryOnly(cfg.Store) {
		log.Warn("memory store without store.path; nothing is kept after this command exits")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	e, err := engine.Open(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Sync()
		return nil, err
	}
	return &session{ctx: ctx, cancel: cancel, cfg: cfg, log: log, engine: e}, nil
}

// memoryOnly reports whether the store keeps nothing between runs
func memoryOnly(cfg model.StoreConfig) bool {
	return (cfg.Driver == "" || cfg.Driver == "memory") && cfg.Path == ""
}

func (s *session) Close() {
	s.engine.Close()
	s.cancel()
	s.log.Sync()
}

// printJSON writes machine-readable output to stdout
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func banner(title string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  %s\n", title)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
}
