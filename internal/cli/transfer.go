package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/watchlist/internal/jsonl"
)

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write all records as JSON Lines to file or stdout",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			if len(args) == 0 {
				return w.Export(a.out)
			}
			if err := w.ExportFile(args[0]); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(a.errOut, "exported %d records to %s\n", w.Len(), args[0])
			return nil
		},
	}
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create records from a JSON Lines file",
		Long: `import reads one record per line. Malformed lines and records whose id
already exists are skipped.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := jsonl.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}

			w, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			n, err := w.ImportRecords(cmd.Context(), recs)
			if err != nil {
				return fmt.Errorf("import stopped after %d records: %w", n, err)
			}
			if a.jsonOut {
				return a.printJSON(map[string]int{"imported": n})
			}
			fmt.Fprintf(a.out, "imported %d records\n", n)
			return nil
		},
	}
}
