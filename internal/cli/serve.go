package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance/internal/api"
	"github.com/ppiankov/provenance/internal/store"
)

// serveCmd runs the HTTP query surface
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve facts and media selection over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if s.cfg.Store.Driver == "memory" && s.cfg.Store.Path != "" {
			s.log.Warn("serving from the memory store; changes are written to the snapshot on shutdown", "path", s.cfg.Store.Path)
		}
		return api.NewServer(s.engine, s.cfg.HTTP.Addr, s.log).Run(s.ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required (set --dsn or PROVENANCE_STORE_DSN)")
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := store.MigrateUp(cfg.Store.DSN, log); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Schema up to date\n")
		return nil
	},
}

var validateSourcesCmd = &cobra.Command{
	Use:   "validate-sources",
	Short: "Re-check every source URL and update source quality",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.engine.ValidateSources(s.ctx)
		if report != nil {
			fmt.Fprintf(os.Stderr, "✓ Checked %d URLs for %d sources: %d updated, %d dead, %d stale\n",
				report.URLs, report.Sources, report.Updated, report.Dead, report.Stale)
			if jsonErr := printJSON(report); jsonErr != nil && err == nil {
				err = jsonErr
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, validateSourcesCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	_ = bindFlag("http.addr", serveCmd, "addr")
}
