package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance/internal/engine"
)

var (
	extractEntity string
	extractResume bool
)

// extractCmd runs claim extraction over stored documents
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract claims from stored documents",
	Long: `Extract runs claim extraction over every stored document and the entities
it names, one document/entity pair at a time. Each pair commits on its own and
progress is checkpointed, so an interrupted run can continue with --resume.

Example:
  provenance extract
  provenance extract --entity jeff-mills
  provenance extract --resume`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

// reconcileCmd resolves facts and persists claim statuses
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [entity]",
	Short: "Reconcile claims into facts for one entity or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(reconcileCmd)

	extractCmd.Flags().StringVarP(&extractEntity, "entity", "e", "", "only extract for this entity (id or slug)")
	extractCmd.Flags().BoolVar(&extractResume, "resume", false, "skip pairs completed by the last run")
	extractCmd.Flags().Duration("delay", 0, "pause between inference calls (overrides extraction.delay)")
	_ = bindFlag("extraction.delay", extractCmd, "delay")
}

func runExtract(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	banner("Provenance Extraction")
	fmt.Fprintf(os.Stderr, "  Finder:       %s\n", s.cfg.Extraction.Finder)
	fmt.Fprintf(os.Stderr, "  Inference:    %v\n", s.engine.InferenceEnabled())
	fmt.Fprintf(os.Stderr, "  Delay:        %v\n", s.cfg.Extraction.Delay)
	fmt.Fprintf(os.Stderr, "  Checkpoint:   %s\n", s.cfg.Extraction.CheckpointPath)
	fmt.Fprintf(os.Stderr, "  Resume:       %v\n", extractResume)
	fmt.Fprintf(os.Stderr, "\n")

	report, err := s.engine.Extract(s.ctx, engine.ExtractOptions{Entity: extractEntity, Resume: extractResume})
	if report != nil {
		banner("Extraction Complete")
		fmt.Fprintf(os.Stderr, "  Total:      %d pairs\n", report.Total)
		fmt.Fprintf(os.Stderr, "  Processed:  %d\n", report.Processed)
		fmt.Fprintf(os.Stderr, "  Skipped:    %d\n", report.Skipped)
		fmt.Fprintf(os.Stderr, "  Resumed:    %d\n", report.Resumed)
		fmt.Fprintf(os.Stderr, "  Failed:     %d\n", report.Failed)
		fmt.Fprintf(os.Stderr, "  Remaining:  %d\n", report.Remaining)
		fmt.Fprintf(os.Stderr, "\n")
		if jsonErr := printJSON(report); jsonErr != nil && err == nil {
			err = jsonErr
		}
	}
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d pairs failed; rerun with --resume to retry them", report.Failed)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 1 {
		facts, err := s.engine.Reconcile(s.ctx, args[0])
		if err != nil {
			return err
		}
		return printFacts(facts)
	}

	report, err := s.engine.ReconcileAll(s.ctx)
	if report != nil {
		fmt.Fprintf(os.Stderr, "✓ Reconciled %d entities: %d facts (%d verified, %d conflicting, %d unverified)\n",
			report.Entities, report.Facts, report.Verified, report.Conflicting, report.Unverified)
		if jsonErr := printJSON(report); jsonErr != nil && err == nil {
			err = jsonErr
		}
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d entities failed to reconcile", report.Failed)
	}
	return nil
}
