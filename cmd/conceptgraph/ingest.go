package conceptgraph

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soundprediction/conceptgraph/pkg/merge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest --user USER FILE...",
	Short: "Process documents synchronously into a user's concept graph",
	Long: `Run text extraction, concept extraction and the merge for each file in order,
printing a summary per document. Files are processed one at a time so later
documents resolve against concepts created by earlier ones.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("user", "", "User who owns the graph (required)")
	ingestCmd.Flags().String("document", "", "Document id (only with a single file; generated otherwise)")
	ingestCmd.Flags().Duration("timeout", 10*time.Minute, "Timeout for the whole run")
	_ = ingestCmd.MarkFlagRequired("user")

	addDatabaseFlags(ingestCmd)
	addPipelineFlags(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	documentID, _ := cmd.Flags().GetString("document")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if documentID != "" && len(args) > 1 {
		return fmt.Errorf("--document can only be used with a single file")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		_ = a.Close(closeCtx)
	}()

	var failed int
	for _, path := range args {
		docID := documentID
		if docID == "" {
			docID = uuid.New().String()
		}
		res, err := a.client.Ingest(ctx, path, userID, docID)
		if err != nil {
			failed++
			a.logger.Error("Ingest failed", "path", path, "document_id", docID, "user_id", userID, "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			if res == nil {
				continue
			}
		}
		printSummary(cmd.OutOrStdout(), path, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

func printSummary(w io.Writer, path string, res *merge.Result) {
	fmt.Fprintf(w, "%s (%s): %d nodes created, %d resolved, %d dropped; %d edges created, %d duplicate, %d skipped\n",
		path,
		res.DocumentID,
		len(res.CreatedNodes),
		res.ResolvedNodes,
		res.DroppedNodes,
		len(res.CreatedEdges),
		res.DuplicateEdges,
		res.SkippedEdges)
}
