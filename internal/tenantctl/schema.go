package tenantctl

import (
	"context"
	"fmt"
	"slices"

	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *app) bootstrapCmd() *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the schema and the tenant_migrations table",
		Long: `Creates the clinic-scoped schema. With --legacy it creates the schema as it
was before clinic isolation, which is useful to rehearse a migration.
Existing tables are left as they are. Tenant-owned tables without a recorded
stage get the stage detected from the schema, so a fresh clinic-scoped
schema can be enforced right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ddl := schema.BaselineSQL
			if legacy {
				ddl = schema.LegacySQL
			}
			ctx := cmd.Context()
			var adopted []string
			err := a.db.InTx(ctx, func(ctx context.Context) error {
				conn := a.db.Conn(ctx)
				if _, err := conn.ExecContext(ctx, ddl); err != nil {
					return migration.Classify(fmt.Errorf("failed to apply schema: %w", err))
				}
				states := migration.NewStateStore(conn)
				if err := states.Ensure(ctx); err != nil {
					return err
				}
				var err error
				adopted, err = states.Adopt(ctx, a.registry.Names(), a.appliedBy)
				return err
			})
			if err != nil {
				return err
			}
			a.log.Info().Bool("legacy", legacy).Int("tables_recorded", len(adopted)).Msg("schema bootstrapped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Create the pre-isolation schema")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the isolation stage of every tenant-owned table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			insp := migration.NewInspector(a.db)

			recorded := map[string]migration.State{}
			hasState, err := insp.TableExists(ctx, "tenant_migrations")
			if err != nil {
				return err
			}
			if hasState {
				states, err := migration.NewStateStore(a.db).List(ctx)
				if err != nil {
					return err
				}
				for _, st := range states {
					recorded[st.Table] = st
				}
			}

			table := tablewriter.NewWriter(a.stdout)
			table.SetHeader([]string{"Table", "Schema stage", "Recorded", "Applied by", "Updated"})
			table.SetAutoWrapText(false)
			for _, spec := range a.registry.TenantOwned {
				snap, err := insp.Snapshot(ctx, spec.Name)
				if err != nil {
					return err
				}
				live := "absent"
				if snap.Exists {
					live = string(snap.Stage())
				}
				row := []string{spec.Name, live, "-", "-", "-"}
				if st, ok := recorded[spec.Name]; ok {
					row[2] = string(st.Stage)
					row[3] = st.AppliedBy
					row[4] = st.UpdatedAt.Format("2006-01-02 15:04:05")
				}
				table.Append(row)
			}
			table.Render()
			return nil
		},
	}
}

func (a *app) discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <table>",
		Short: "List the foreign keys that reference a table",
		Long: `Lists every table with a foreign key to <table>, read from information_schema,
and whether each carries clinic_id of its own. Children without clinic_id
that are not registered as tenant-owned or user-scoped are landmines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d := migration.NewDiscovery(a.db)

			fks, err := d.ReferencingTables(ctx, args[0])
			if err != nil {
				return err
			}
			scoped, err := d.TablesWithColumn(ctx, schema.ClinicColumn)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(a.stdout)
			table.SetHeader([]string{"Table", "Column", "References", "Constraint", "Has clinic_id", "Registered as"})
			table.SetAutoWrapText(false)
			for _, fk := range fks {
				table.Append([]string{
					fk.Table,
					fk.Column,
					fk.RefTable + "." + fk.RefColumn,
					fk.Constraint,
					yesNo(slices.Contains(scoped, fk.Table)),
					a.classification(fk.Table),
				})
			}
			table.Render()
			_, err = fmt.Fprintf(a.stdout, "%d referencing columns\n", len(fks))
			return err
		},
	}
}

func (a *app) classification(table string) string {
	switch {
	case a.registry.IsTenantOwned(table):
		return "tenant-owned"
	case a.registry.IsUserScoped(table):
		return "user-scoped"
	default:
		return "-"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
