package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SHDeniz/IIEV-Ultra/internal/queue"
)

var processCmd = &cobra.Command{
	Use:   "process <transaction-id>",
	Short: "Process one transaction inline",
	Long: `Run the validation pipeline for a single transaction in the
foreground, without going through the queue. Useful for reprocessing a
stuck transaction or debugging a validation outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("not a transaction id: %q", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TaskTimeout())
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.processor.Handle(ctx, &queue.Task{TransactionID: id, DeliveryCount: 1}); err != nil {
		return err
	}

	tx, err := rt.store.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  %s\n", tx.ID, tx.Status, tx.LevelReached)
	return nil
}
