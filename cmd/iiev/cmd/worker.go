package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SHDeniz/IIEV-Ultra/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the validation worker pool",
	Long: `Run a pool of workers consuming invoice tasks from the queue.

Each worker claims one transaction at a time, runs the validation stages
in order and writes the terminal status and report. The pool drains on
SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	pool := &worker.Pool{
		Processor:   rt.processor,
		Queue:       rt.queue,
		Concurrency: cfg.WorkerConcurrency,
		TaskTimeout: cfg.TaskTimeout(),
	}
	log.Info("worker pool starting",
		"concurrency", cfg.WorkerConcurrency, "queue", cfg.Queue.Name)
	return pool.Run(ctx)
}
