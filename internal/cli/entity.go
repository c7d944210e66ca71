package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance/internal/model"
)

var entitySlug string

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Register and list archive entities",
}

var entityAddCmd = &cobra.Command{
	Use:   "add <kind> <name>",
	Short: "Register an entity (artist, venue, label, gear, festival, crew)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := model.ParseEntityKind(args[0])
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entity, err := s.engine.AddEntity(s.ctx, kind, args[1], entitySlug)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s %s (%s)\n", entity.Kind, entity.Slug, entity.ID)
		return printJSON(entity)
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entities, err := s.engine.ListEntities(s.ctx)
		if err != nil {
			return err
		}
		return printJSON(entities)
	},
}

func init() {
	rootCmd.AddCommand(entityCmd)
	entityCmd.AddCommand(entityAddCmd, entityListCmd)
	entityAddCmd.Flags().StringVar(&entitySlug, "slug", "", "slug (derived from the name when empty)")
}
