package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkfoss/nwrfc/internal/styles"
)

func newPingCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the destination answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			start := time.Now()
			if err := conn.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			w := cmd.OutOrStdout()
			printf(w, "%s\n", styles.Success(fmt.Sprintf("pong in %s", time.Since(start).Round(time.Microsecond))))
			printf(w, "%s\n", styles.Field("Library", conn.Library().Version().String()))
			printf(w, "%s\n", styles.Field("Backend", conn.Library().Backend().String()))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "maximum time to wait for the connection")
	return cmd
}
