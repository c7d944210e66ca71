package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	assetAlt     string
	assetRescore bool
	assetReason  string
	assetBest    bool
)

// assetsCmd groups the media candidate commands
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage candidate media for entities",
	Long: `Candidate images are scored for identity match and quality, then at most
one eligible image per entity is selected.

Example:
  provenance assets list artist jeff-mills
  provenance assets add artist jeff-mills https://ra.co/images/jeffmills.jpg --alt "Jeff Mills live"
  provenance assets score artist jeff-mills
  provenance assets select artist jeff-mills --best
  provenance assets select 0195f1c2-...
  provenance assets reject 0195f1c2-... --reason "not the artist"`,
}

var assetsListCmd = &cobra.Command{
	Use:   "list <kind> <entity>",
	Short: "List an entity's candidates with their eligibility",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ref, err := s.engine.EntityRef(s.ctx, args[0], args[1])
		if err != nil {
			return err
		}
		candidates, err := s.engine.ListCandidates(s.ctx, ref)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			mark := "✗"
			if c.Selected {
				mark = "★"
			} else if c.Eligible {
				mark = "✓"
			}
			fmt.Fprintf(os.Stderr, "  %s %s %5.1f %s\n", mark, c.ID, c.Combined, c.SourceURL)
		}
		return printJSON(candidates)
	},
}

var assetsAddCmd = &cobra.Command{
	Use:   "add <kind> <entity> <image-url>",
	Short: "Register an image URL as a candidate",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ref, err := s.engine.EntityRef(s.ctx, args[0], args[1])
		if err != nil {
			return err
		}
		asset, err := s.engine.AddCandidate(s.ctx, ref, args[2], assetAlt)
		if err != nil {
			return err
		}
		return printJSON(asset)
	},
}

var assetsScoreCmd = &cobra.Command{
	Use:   "score <kind> <entity>",
	Short: "Verify candidates with the inference provider",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ref, err := s.engine.EntityRef(s.ctx, args[0], args[1])
		if err != nil {
			return err
		}
		report, err := s.engine.ScoreCandidates(s.ctx, ref, assetRescore)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Scored %d, skipped %d, failed %d\n", report.Scored, report.Skipped, report.Failed)
		return printJSON(report)
	},
}

var assetsSelectCmd = &cobra.Command{
	Use:   "select <asset-id> | <kind> <entity> --best",
	Short: "Select an asset, or the best eligible candidate of an entity",
	Args: func(cmd *cobra.Command, args []string) error {
		if assetBest {
			return cobra.ExactArgs(2)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if !assetBest {
			asset, err := s.engine.SelectAsset(s.ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Selected %s\n", asset.ID)
			return printJSON(asset)
		}

		ref, err := s.engine.EntityRef(s.ctx, args[0], args[1])
		if err != nil {
			return err
		}
		outcome, err := s.engine.SelectBest(s.ctx, ref)
		if err != nil {
			return err
		}
		if outcome.Selected == nil {
			fmt.Fprintf(os.Stderr, "No eligible candidate (%d ineligible)\n", len(outcome.Ineligible))
		} else {
			fmt.Fprintf(os.Stderr, "✓ Selected %s (score %.1f)\n", outcome.Selected.ID, outcome.Score)
		}
		// Mirroring runs in the background; Close waits for it
		return printJSON(outcome)
	},
}

var assetsRejectCmd = &cobra.Command{
	Use:   "reject <asset-id>",
	Short: "Reject an asset; a selected asset is unselected and not replaced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.engine.RejectAsset(s.ctx, args[0], assetReason); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Asset %s rejected\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.AddCommand(assetsListCmd, assetsAddCmd, assetsScoreCmd, assetsSelectCmd, assetsRejectCmd)

	assetsAddCmd.Flags().StringVar(&assetAlt, "alt", "", "alt text of the image")
	assetsScoreCmd.Flags().BoolVar(&assetRescore, "rescore", false, "rescore already scored candidates")
	assetsSelectCmd.Flags().BoolVar(&assetBest, "best", false, "select the best eligible candidate of <kind> <entity>")
	assetsRejectCmd.Flags().StringVar(&assetReason, "reason", "", "why the asset is rejected")
}
