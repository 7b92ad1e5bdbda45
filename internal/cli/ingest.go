package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieldevos90/brutally-honest-ai/internal/pipeline"
	"github.com/danieldevos90/brutally-honest-ai/internal/profile"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|url>...",
	Short: "Add documents to the knowledge base",
	Long: `Ingest extracts text from documents (plain text, Markdown, HTML, JSON, CSV)
or web pages, splits it into overlapping chunks, embeds the chunks and stores
them in the vector index.

URLs are fetched with robots.txt compliance and per-host rate limiting.
Ingestion only persists with a durable vector backend (vector.backend: qdrant).

Example:
  brutally-honest ingest ./knowledge
  brutally-honest ingest https://en.wikipedia.org/wiki/Giraffe
  brutally-honest ingest profiles people.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var ingestProfilesCmd = &cobra.Command{
	Use:   "profiles <file.yaml>...",
	Short: "Import profiles and their facts into the database profile store",
	Long: `Import reads YAML profile files (a top-level "profiles" list) and saves them
into the sqlite or postgres profile store configured under "profiles".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngestProfiles,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestProfilesCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.EqualFold(cfg.Vector.Backend, "memory") || cfg.Vector.Backend == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: vector.backend is memory; ingested documents are discarded on exit\n")
	}

	comps, err := pipeline.Build(ctx, cfg, log, nil)
	if err != nil {
		return err
	}

	var paths []string
	for _, arg := range args {
		if !isURL(arg) {
			paths = append(paths, arg)
			continue
		}
		result, err := comps.Ingester.IngestURL(ctx, arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Ingested %s (%d chunks, document %s)\n", arg, result.Chunks, result.DocumentID)
	}
	if len(paths) > 0 {
		return ingestPaths(ctx, cmd.OutOrStdout(), comps.Ingester, paths)
	}
	return nil
}

func runIngestProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	switch cfg.Profiles.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("profiles backend %q reads YAML directly; set profiles.backend to sqlite or postgres to import", cfg.Profiles.Backend)
	}
	dsn := cfg.Profiles.DSN
	if dsn == "" {
		dsn = cfg.Profiles.Path
	}
	store, err := profile.OpenGormStore(cfg.Profiles.Backend, dsn)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, file := range args {
		profiles, err := profile.LoadYAMLFile(file)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			if err := store.Save(ctx, p); err != nil {
				return fmt.Errorf("save profile %s: %w", p.Name, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d profiles from %s\n", len(profiles), file)
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
