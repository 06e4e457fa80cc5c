package tenantctl

import (
	"errors"
	"fmt"
	"io"

	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	var (
		all           bool
		dryRun        bool
		defaultClinic string
	)
	cmd := &cobra.Command{
		Use:   "migrate [table...]",
		Short: "Move tables through the isolation stages up to CONSTRAINED",
		Long: `Adds clinic_id, backfills it, verifies every row and applies NOT NULL, the
foreign key to clinics and the index. Each table runs in its own transaction
and rolls back completely when rows cannot be attributed to a clinic.

Tables are processed in registry order so children backfill from parents.
Tables without a parent to backfill from receive --default-clinic, which
defaults to tenancy.default_clinic_id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("name the tables to migrate or pass --all")
			}
			specs, err := a.specs(args)
			if err != nil {
				return err
			}
			if defaultClinic == "" {
				defaultClinic = a.cfg.Tenancy.DefaultClinicID
			}

			results, err := a.migrator().ApplyAll(cmd.Context(), specs, migration.Options{
				DryRun:          dryRun,
				DefaultClinicID: defaultClinic,
				AppliedBy:       a.appliedBy,
			})
			if werr := writeResults(a.stdout, results, dryRun); werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&all, "all", false, "Migrate every tenant-owned table")
	flags.BoolVar(&dryRun, "dry-run", false, "Print the statements without executing them")
	flags.StringVar(&defaultClinic, "default-clinic", "", "Clinic assigned to rows of tables without a parent backfill")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var column string
	cmd := &cobra.Command{
		Use:   "verify <table>",
		Short: "Check that every row of a table belongs to an existing clinic",
		Long: `Counts the rows of <table>, the rows with a non-null clinic column and the
rows whose value resolves to a clinic. Exits with 2 when the counts differ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := migration.NewVerifier(a.db).Verify(cmd.Context(), args[0], column)
			if err != nil && !errors.Is(err, migration.ErrDataIntegrity) {
				return err
			}
			if werr := writeCounts(a.stdout, counts); werr != nil {
				return werr
			}
			if err != nil {
				return violation(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&column, "column", schema.ClinicColumn, "Column that references clinics")
	return cmd
}

func (a *app) enforceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enforce <table...>",
		Short: "Record CONSTRAINED tables as ENFORCED",
		Long: `Marks tables as ENFORCED once every service reading them goes through the
clinic guard. Only CONSTRAINED tables can be enforced.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.specs(args); err != nil {
				return err
			}
			results, err := a.migrator().Enforce(cmd.Context(), args, a.appliedBy)
			if werr := writeResults(a.stdout, results, false); werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}
}

func writeResults(w io.Writer, results []*migration.Result, withSteps bool) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "From", "To", "Outcome", "Rows", "Null", "Orphaned"})
	table.SetAutoWrapText(false)
	for _, r := range results {
		table.Append([]string{
			r.Table, dash(string(r.From)), dash(string(r.To)), string(r.Outcome),
			fmt.Sprint(r.Counts.Total), fmt.Sprint(r.Counts.Nulls()), fmt.Sprint(r.Counts.Orphans()),
		})
	}
	table.Render()

	if !withSteps {
		return nil
	}
	for _, r := range results {
		for _, step := range r.Steps {
			if _, err := fmt.Fprintf(w, "\n-- %s: %s (%s)\n", r.Table, step.Description, step.To); err != nil {
				return err
			}
			for _, st := range step.Statements {
				line := st.SQL + ";"
				if len(st.Args) > 0 {
					line += fmt.Sprintf(" -- args: %v", st.Args)
				}
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeCounts(w io.Writer, c migration.Counts) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Column", "Rows", "Non-null", "Valid", "Null", "Orphaned"})
	table.Append([]string{
		c.Table, c.Column,
		fmt.Sprint(c.Total), fmt.Sprint(c.NonNull), fmt.Sprint(c.Valid),
		fmt.Sprint(c.Nulls()), fmt.Sprint(c.Orphans()),
	})
	table.Render()
	status := "OK"
	if !c.Complete() {
		status = "VIOLATION"
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", c.Table, status)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
