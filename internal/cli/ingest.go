package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance/internal/ingest"
	"github.com/ppiankov/provenance/internal/worker"
)

var (
	ingestEntities []string
	ingestFile     string
	ingestTextFile string
)

// ingestCmd fetches source pages into the document store
var ingestCmd = &cobra.Command{
	Use:   "ingest [url...]",
	Short: "Fetch source pages and store them as documents for entities",
	Long: `Ingest fetches each URL, stores its visible text as an immutable document
linked to the given entities, and registers the page's images as candidate
media for those entities. Re-ingesting a URL stores a new document.

Example:
  provenance ingest https://ra.co/dj/jeffmills/biography --entity jeff-mills
  provenance ingest --file urls.txt --entity jeff-mills --entity underground-resistance
  provenance ingest https://www.discogs.com/artist/1234 --text-file bio.txt --entity jeff-mills`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringSliceVarP(&ingestEntities, "entity", "e", nil, "entity id or slug (repeatable)")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "read URLs from file (one per line, # comments)")
	ingestCmd.Flags().StringVar(&ingestTextFile, "text-file", "", "store this file's text for the single URL instead of fetching it")
	_ = ingestCmd.MarkFlagRequired("entity")
}

func runIngest(cmd *cobra.Command, args []string) error {
	urls := args
	if ingestFile != "" {
		fromFile, err := worker.ReadURLsFromFile(ingestFile)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}
	if ingestTextFile != "" && len(urls) != 1 {
		return fmt.Errorf("--text-file needs exactly one URL")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if ingestTextFile != "" {
		content, err := os.ReadFile(ingestTextFile)
		if err != nil {
			return fmt.Errorf("read text file: %w", err)
		}
		result, err := s.engine.IngestText(s.ctx, urls[0], string(content), ingestEntities)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	var results []*ingest.Result
	failed := 0
	for _, u := range urls {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		result, err := s.engine.Ingest(s.ctx, u, ingestEntities)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", u, err)
			continue
		}
		results = append(results, result)
		fmt.Fprintf(os.Stderr, "✓ %s (document %s, %d images)\n", u, result.Document.ID, len(result.Assets))
	}

	if err := printJSON(results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(urls))
	}
	return nil
}
