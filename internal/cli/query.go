package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ragstack/internal/usecase"
)

var (
	queryText      string
	queryTopK      int
	queryThreshold float64
	querySystem    string
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer a question over the stored documents",
	Long: `Embed the question, retrieve the most similar stored chunks, and
generate an answer grounded in them.

Examples:
  ragstack query -q "how does authentication work"
  ragstack query -q "deploy steps" --top-k 10 --threshold 0.5 --json`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to answer (required)")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", usecase.DefaultTopK, "number of chunks to retrieve")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", usecase.DefaultScoreThreshold, "minimum similarity score (0.0-1.0)")
	queryCmd.Flags().StringVar(&querySystem, "system", "", "system prompt for the answer")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	service, closeStore, err := buildService(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := service.Query(cmd.Context(), usecase.QueryInput{
		Query:          queryText,
		TopK:           queryTopK,
		ScoreThreshold: queryThreshold,
		SystemPrompt:   querySystem,
	})
	if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Response)
	if len(result.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for _, src := range result.Sources {
			source, _ := src.Metadata["source"].(string)
			if source == "" {
				source = src.ID
			}
			fmt.Printf("  %.3f  %s\n", src.Score, source)
		}
	}

	return nil
}
