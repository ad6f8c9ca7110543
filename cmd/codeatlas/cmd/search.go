package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeatlas-ai/codeatlas/internal/search"
)

type searchResultJSON struct {
	Citation  string  `json:"citation"`
	FilePath  string  `json:"filePath"`
	StartLine int     `json:"startLine"`
	EndLine   int     `json:"endLine"`
	Language  string  `json:"language,omitempty"`
	ChunkType string  `json:"chunkType"`
	Symbol    string  `json:"symbol,omitempty"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
}

type searchResponseJSON struct {
	Strategy   string             `json:"strategy"`
	QueryType  string             `json:"queryType"`
	Reranked   bool               `json:"reranked"`
	TotalFound int                `json:"totalFound"`
	Results    []searchResultJSON `json:"results"`
}

func newSearchCmd() *cobra.Command {
	var (
		limit      int
		asJSON     bool
		paths      []string
		chunkTypes []string
	)

	cmd := &cobra.Command{
		Use:   "search <owner>/<repo> <query>",
		Short: "Search an indexed repository",
		Long: `Search runs hybrid retrieval over an indexed repository. The query is
classified to pick a strategy: exact identifiers go through symbol
lookup, enumeration queries through metadata filters, everything else
through fused vector and lexical search.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repositoryID := args[0]
			query := strings.Join(args[1:], " ")

			cfg, logger, cleanup, err := bootCLI()
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.buildEngine()
			if err != nil {
				return err
			}

			resp, err := engine.SmartRetrieve(ctx, repositoryID, query, search.Options{
				Limit:        limit,
				PathPatterns: paths,
				ChunkTypes:   chunkTypes,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return printSearchJSON(cmd, resp)
			}
			printSearchText(cmd, resp)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default: search.max_results)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	cmd.Flags().StringSliceVar(&paths, "path", nil, "restrict to path patterns (repeatable)")
	cmd.Flags().StringSliceVar(&chunkTypes, "type", nil, "restrict to chunk types, e.g. function, class (repeatable)")
	return cmd
}

func printSearchJSON(cmd *cobra.Command, resp *search.Response) error {
	out := searchResponseJSON{
		Strategy:   string(resp.Strategy),
		QueryType:  string(resp.QueryType),
		Reranked:   resp.Reranked,
		TotalFound: resp.TotalFound,
		Results:    make([]searchResultJSON, 0, len(resp.Chunks)),
	}
	for _, c := range resp.Chunks {
		out.Results = append(out.Results, searchResultJSON{
			Citation:  fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine),
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Language:  c.Language,
			ChunkType: c.ChunkType,
			Symbol:    c.SymbolName,
			Score:     c.Score,
			Content:   c.Content,
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSearchText(cmd *cobra.Command, resp *search.Response) {
	w := cmd.OutOrStdout()
	if len(resp.Chunks) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	fmt.Fprintf(w, "%d results (strategy: %s)\n\n", len(resp.Chunks), resp.Strategy)
	for i, c := range resp.Chunks {
		header := fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
		if c.SymbolName != "" {
			header += "  " + c.SymbolName
		}
		fmt.Fprintf(w, "%2d. %s  (%.3f)\n", i+1, header, c.Score)
		for _, line := range strings.Split(strings.TrimRight(c.Content, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintln(w)
	}
}
