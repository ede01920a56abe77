package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/watchlist/internal/api"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

func (a *app) newPosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poster <id>",
		Short: "Look up the poster URL for a record on TMDB",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			u, err := w.PosterURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]string{"id": args[0], "url": u})
			}
			if u == "" {
				fmt.Fprintln(a.out, "no poster found")
				return nil
			}
			fmt.Fprintln(a.out, u)
			return nil
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the watchlist over HTTP",
		Long: `serve exposes the watchlist as a JSON API under /api/v1, with /health/live
and /metrics. It stops on SIGINT or SIGTERM.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			addr := w.Config().Listen
			if listen != "" {
				addr = listen
			}
			h := api.NewHandler(w, a.log)
			return api.NewServer(addr, h.Router(), a.log).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, "+types.DefaultListen+")")
	return cmd
}
