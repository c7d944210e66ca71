package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/present"
)

var (
	factsDisplay    bool
	factsNoEvidence bool
	factsPredicate  string
	rejectReason    string
)

// factsCmd resolves an entity's facts
var factsCmd = &cobra.Command{
	Use:   "facts <entity>",
	Short: "Resolve the facts of an entity",
	Long: `Facts resolves every predicate with claims about an entity. Each result is
a valid fact with its evidence, a conflict listing every credible value, or an
unverified marker.

Example:
  provenance facts jeff-mills
  provenance facts jeff-mills --predicate birth_date
  provenance facts jeff-mills --display --no-evidence`,
	Args: cobra.ExactArgs(1),
	RunE: runFacts,
}

var reportCmd = &cobra.Command{
	Use:   "report <entity>",
	Short: "Show the coverage report of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.engine.EntityReport(s.ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d verified, %d conflicting, %d unverified facts from %d sources (score %d/100)\n",
			args[0], report.Facts.Verified, report.Facts.Conflicting, report.Facts.Unverified,
			report.Sources.Total, report.Score.Index)
		return printJSON(report)
	},
}

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "List, reject or reinstate claims",
}

var claimsListCmd = &cobra.Command{
	Use:   "list <entity>",
	Short: "List an entity's claims with their sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		claims, err := s.engine.Claims(s.ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(claims)
	},
}

var claimsRejectCmd = &cobra.Command{
	Use:   "reject <claim-id>",
	Short: "Exclude a claim from resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.engine.RejectClaim(s.ctx, args[0], rejectReason); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Claim %s rejected\n", args[0])
		return nil
	},
}

var claimsReinstateCmd = &cobra.Command{
	Use:   "reinstate <claim-id>",
	Short: "Return a rejected claim to resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.engine.ReinstateClaim(s.ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Claim %s reinstated\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsListCmd)
	claimsCmd.AddCommand(claimsRejectCmd)
	claimsCmd.AddCommand(claimsReinstateCmd)

	factsCmd.Flags().BoolVar(&factsDisplay, "display", false, "render facts for display")
	factsCmd.Flags().BoolVar(&factsNoEvidence, "no-evidence", false, "hide evidence in the display view")
	factsCmd.Flags().StringVar(&factsPredicate, "predicate", "", "resolve a single predicate (e.g. birth_date)")
	claimsRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the claim is rejected")
}

func runFacts(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if factsPredicate != "" {
		fact, err := s.engine.GetFact(s.ctx, args[0], model.ClaimType(factsPredicate))
		if err != nil {
			return err
		}
		return printFacts([]model.FactResult{fact})
	}

	if factsDisplay {
		var toggle *present.EvidenceToggle
		if factsNoEvidence {
			entity, err := s.engine.Entity(s.ctx, args[0])
			if err != nil {
				return err
			}
			toggle = present.NewEvidenceToggle()
			toggle.Set(entity.ID, false)
		}
		view, err := s.engine.DisplayFacts(s.ctx, args[0], toggle)
		if err != nil {
			return err
		}
		if view.Empty {
			fmt.Fprintf(os.Stderr, "%s\n", view.Message)
		}
		return printJSON(view)
	}

	facts, err := s.engine.GetFacts(s.ctx, args[0])
	if err != nil {
		return err
	}
	for _, f := range facts {
		view := present.Present(f, false)
		value := view.Value
		switch {
		case len(view.Conflicts) > 0:
			value = fmt.Sprintf("%d differing values", len(view.Conflicts))
		case value == "":
			value = view.Message
		}
		fmt.Fprintf(os.Stderr, "  [%s] %s: %s\n", view.Badge, view.Label, value)
	}
	return printFacts(facts)
}

// printFacts writes facts with their kind discriminator
func printFacts(facts []model.FactResult) error {
	raw, err := model.MarshalFactResults(facts)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(os.Stdout)
	return err
}
