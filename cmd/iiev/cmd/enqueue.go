package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <file>...",
	Short: "Upload invoice files and queue them for validation",
	Long: `Upload one or more raw invoice files (XML or PDF) to the blob
store, register a transaction for each and hand them to the worker queue.

Examples:
  iiev enqueue invoice.xml
  iiev enqueue inbox/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		id := uuid.New()
		uri := fmt.Sprintf("%s/%s/%s", cfg.Blob.RawBucket, id, filepath.Base(path))
		contentType := "application/xml"
		if bytes.HasPrefix(data, []byte("%PDF-")) {
			contentType = "application/pdf"
		}

		if err := rt.blobs.Put(ctx, uri, data, contentType); err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		err = rt.store.Insert(ctx, &model.Transaction{
			ID:               id,
			Source:           "cli",
			OriginalFilename: filepath.Base(path),
			ContentType:      contentType,
			FileSize:         int64(len(data)),
			RawURI:           uri,
		})
		if err != nil {
			return err
		}
		if err := rt.queue.Enqueue(ctx, id); err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", id, path)
	}
	return nil
}
