package tenantctl

import (
	"fmt"

	"github.com/GestIAdev/Dentiagest-sub007/internal/audit"
	"github.com/spf13/cobra"
)

func (a *app) auditCmd() *cobra.Command {
	var (
		asJSON   bool
		discover bool
		tables   []string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report tables that break clinic isolation without changing anything",
		Long: `Inspects every tenant-owned table in a read-only transaction. Missing
optional tables are warnings. Exits with 2 only when rows without a valid
clinic are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := a.specs(tables)
			if err != nil {
				return err
			}
			report, err := a.auditor().Run(cmd.Context(), specs, audit.Options{Discover: discover})
			if err != nil {
				return err
			}

			if asJSON {
				err = report.WriteJSON(a.stdout)
			} else {
				err = report.WriteTable(a.stdout)
			}
			if err != nil {
				return err
			}

			if report.HasViolations() {
				return violation(fmt.Errorf("%d tables violate clinic isolation", report.Summary().Violations))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flags.BoolVar(&discover, "discover", false, "Also search information_schema for unregistered tables holding clinic data")
	flags.StringSliceVar(&tables, "table", nil, "Audit only these tables (repeatable)")
	return cmd
}
