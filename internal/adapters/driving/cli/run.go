package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		Long: `Starts the upload pipeline and the scheduled download and credential
renewal tasks for every configured connector. SIGINT or SIGTERM stops the
agent; in-flight transfers get agent.shutdown-grace to finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd, opts)
		},
	}
}

func runAgent(cmd *cobra.Command, opts *RootOptions) error {
	c, err := newComponents(opts)
	if err != nil {
		return err
	}
	defer c.close()

	agent, err := newAgent(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Agent running with %d connector(s). Press Ctrl+C to stop.\n", len(c.config.Current().Connectors))
	if err := agent.Run(ctx); err != nil {
		return err
	}
	cmd.Println("Agent stopped.")
	return nil
}
