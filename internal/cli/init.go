package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/watchlist/internal/paths"
	"github.com/mesh-intelligence/watchlist/pkg/types"
	"github.com/mesh-intelligence/watchlist/pkg/watchlist"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml and prepare the store",
		Long: `init writes config.yaml into the config directory if it does not exist yet,
then opens the configured store once. For sqlite this creates the data
directory and the table; for dynamodb it checks that the table can be read.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := paths.ConfigFile(a.configDirPath)
			written, err := writeConfigIfMissing(path, a.cfg)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			cfg := w.Config()
			if a.jsonOut {
				return a.printJSON(map[string]any{
					"config":  path,
					"written": written,
					"backend": cfg.Backend,
					"records": w.Len(),
				})
			}
			fmt.Fprintln(a.out, "Watchlist initialized")
			fmt.Fprintln(a.out, "  config: ", path)
			fmt.Fprintln(a.out, "  backend:", cfg.Backend)
			if cfg.Backend == types.BackendSQLite {
				fmt.Fprintln(a.out, "  data:   ", cfg.DataDir)
			} else {
				fmt.Fprintln(a.out, "  table:  ", cfg.Table)
			}
			fmt.Fprintln(a.out, "  records:", w.Len())
			return nil
		},
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the watchlist version",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.out, "watchlist", watchlist.Version)
		},
	}
}
