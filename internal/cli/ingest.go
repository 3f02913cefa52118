package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"ragstack/internal/adapter/chunker"
	"ragstack/internal/adapter/fs"
	"ragstack/internal/adapter/loader"
	"ragstack/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Embed and store documents from a directory",
	Long: `Walk the given directory, split matching files into chunks, embed
them, and store the vectors in the configured backend.

Examples:
  ragstack ingest .              # Ingest the current directory
  ragstack ingest /path/to/docs  # Ingest a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	ctx := cmd.Context()

	service, closeStore, err := buildService(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeStore()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	split := chunker.NewTextChunker(cfg.Ingest.ChunkChars, cfg.Ingest.ChunkOverlap)

	fmt.Printf("Scanning %s...\n", path)
	files, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var (
		filesIngested int
		chunksStored  int
		warnings      []string
	)

	for i, file := range files {
		content, err := loader.ReadDocument(file.Path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", file.RelPath, err))
			bar.Set(i + 1)
			continue
		}

		chunks := split.Chunk(content)
		if len(chunks) == 0 {
			bar.Set(i + 1)
			continue
		}

		lang := loader.DetectLanguage(content)
		docs := make([]domain.Document, len(chunks))
		for j, text := range chunks {
			metadata := map[string]any{
				"source": file.RelPath,
				"chunk":  j,
			}
			if lang != "" {
				metadata["lang"] = lang
			}
			docs[j] = domain.Document{Text: text, Metadata: metadata}
		}

		ids, err := service.Ingest(ctx, docs)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", file.RelPath, err)
		}

		filesIngested++
		chunksStored += len(ids)
		bar.Set(i + 1)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files ingested: %d\n", filesIngested)
	fmt.Printf("  Chunks stored:  %d\n", chunksStored)

	if len(warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	return nil
}
