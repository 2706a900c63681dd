package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sidecar/internal/config"
	"sidecar/internal/retrieval"
)

var ragQueryK int

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Knowledge store utilities",
}

var ragIngestCmd = &cobra.Command{
	Use:   "ingest PATH...",
	Short: "Ingest HTML methodology exports into the knowledge store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRagIngest,
}

var ragQueryCmd = &cobra.Command{
	Use:   "query TERM",
	Short: "Search the knowledge store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRagQuery,
}

func init() {
	ragQueryCmd.Flags().IntVarP(&ragQueryK, "k", "k", 5, "How many snippets to return")
	ragCmd.AddCommand(ragIngestCmd)
	ragCmd.AddCommand(ragQueryCmd)
}

func openStore() (*retrieval.Store, error) {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return retrieval.Open(config.ExpandUser(cfg.RAG.DB))
}

func runRagIngest(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	counts, ingestErr := retrieval.IngestAll(store, args)

	sources := make([]string, 0, len(counts))
	for src := range counts {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	total := 0
	for _, src := range sources {
		cmd.Printf("[+] Ingested %d sections from %s\n", counts[src], src)
		total += counts[src]
	}
	if len(sources) > 1 {
		cmd.Printf("[+] %d sections total\n", total)
	}
	return ingestErr
}

func runRagQuery(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	term := strings.Join(args, " ")
	hits, err := store.Search(term, ragQueryK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(hits) == 0 {
		cmd.Println("no results")
		return nil
	}
	for i, sn := range hits {
		cmd.Printf("[%d] %s\n    %s\n    id=%s\n", i+1, sn.Title, sn.Gist, sn.ID)
	}
	return nil
}
