package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slatrack/internal/app"
	"slatrack/internal/compliance"
	"slatrack/internal/config"
	"slatrack/internal/db"
	"slatrack/internal/engine"
	"slatrack/internal/migrate"
	"slatrack/internal/repo"
	"slatrack/internal/seed"
	"slatrack/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "slt",
	Short: "Slatrack CLI",
	Long: `Slatrack tracks service contracts and whether their SLAs are being met.
Core concepts:
- Workspace: your .slatrack directory holding the database; settings live in slatrack.yml.
- Tenant: the organization that owns contracts and templates.
- Contract: an agreement between parties with an effective date and a reporting frequency; activating it tiles the calendar into reporting periods.
- SLA tree: each contract carries a hierarchy of service level agreements; leaf nodes bind an indicator (SLI) to a MIN or MAX threshold.
- Measurements: observed indicator values per reporting period.
- Compliance reports: one per period, one verdict per measured SLA; regeneration replaces items atomically.
- Event log: diary of changes, view with 'slt log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SLATRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id (overrides single-tenant default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
}

func registerCommands() {
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(partyCmd())
	rootCmd.AddCommand(contractCmd())
	rootCmd.AddCommand(sliCmd())
	rootCmd.AddCommand(slaCmd())
	rootCmd.AddCommand(measureCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(serveCmd())
}

func tenantCmd() *cobra.Command {
	t := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	t.AddCommand(tenantCreateCmd())
	t.AddCommand(tenantListCmd())
	t.AddCommand(tenantStatusCmd())
	return t
}

func tenantCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTenant(ctx, id, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "tenant name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func tenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTenants(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func tenantStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tenant contract counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := app.ResolveTenant(ctx, viper.GetString("tenant"), e.Repo)
				if err != nil {
					return err
				}
				counts, err := e.Repo.CountContractsByStatus(ctx, t.ID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"tenant_id":       t.ID,
					"contract_counts": counts,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Tenant: %s (%s)\n", t.ID, t.Name)
				fmt.Println("Contracts:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func templateCmd() *cobra.Command {
	t := &cobra.Command{Use: "template", Short: "Manage contract templates"}
	t.AddCommand(templateCreateCmd())
	t.AddCommand(templateListCmd())
	return t
}

func templateCreateCmd() *cobra.Command {
	var name, publicationDate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := app.ResolveTenant(ctx, viper.GetString("tenant"), e.Repo)
				if err != nil {
					return err
				}
				tpl, err := e.CreateTemplate(ctx, t.ID, name, publicationDate, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(tpl)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&publicationDate, "publication-date", "", "publication date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("publication-date")
	return cmd
}

func templateListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := app.ResolveTenant(ctx, viper.GetString("tenant"), e.Repo)
				if err != nil {
					return err
				}
				items, err := e.Repo.ListTemplates(ctx, t.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func partyCmd() *cobra.Command {
	p := &cobra.Command{Use: "party", Short: "Manage contract parties"}
	p.AddCommand(partyCreateCmd())
	p.AddCommand(partyListCmd())
	return p
}

func partyCreateCmd() *cobra.Command {
	var name, partyType string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create party",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateParty(ctx, name, partyType, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "party name")
	cmd.Flags().StringVar(&partyType, "type", "", "party type (BUYER, SELLER)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func partyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListParties(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func contractCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "contract",
		Short: "Manage contracts",
		Long:  "Contracts flow DRAFT -> ACTIVE; activation tiles reporting periods from the effective date at the contract's reporting frequency (MONTHLY, QUARTERLY, YEARLY).",
	}
	c.AddCommand(contractCreateCmd())
	c.AddCommand(contractListCmd())
	c.AddCommand(contractShowCmd())
	c.AddCommand(contractUpdateCmd())
	c.AddCommand(contractActivateCmd())
	c.AddCommand(contractPeriodsCmd())
	c.AddCommand(contractGeneratePeriodsCmd())
	c.AddCommand(contractComplianceCmd())
	return c
}

func contractCreateCmd() *cobra.Command {
	var opts engine.ContractCreateOptions
	var parties []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.PartyIDs = parties
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.TenantID == "" {
					t, err := app.ResolveTenant(ctx, viper.GetString("tenant"), e.Repo)
					if err != nil {
						return err
					}
					opts.TenantID = t.ID
				}
				c, err := e.CreateContract(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "contract id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.TenantID, "tenant-id", "", "tenant id")
	cmd.Flags().StringVar(&opts.TemplateID, "template", "", "template id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "contract name")
	cmd.Flags().StringArrayVar(&parties, "party", []string{}, "party id (repeatable)")
	cmd.Flags().StringVar(&opts.SignatureDate, "signature-date", "", "signature date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EffectiveDate, "effective-date", "", "effective date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.ExpirationDate, "expiration-date", "", "expiration date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Frequency, "frequency", "", "reporting frequency (MONTHLY, QUARTERLY, YEARLY)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (DRAFT, ACTIVE)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func contractListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contracts with latest compliance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				contracts, err := e.Repo.ListContracts(ctx, viper.GetString("tenant"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(contracts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Frequency", "Effective", "Compliance"})
				for _, c := range contracts {
					summary, err := e.ContractCompliance(ctx, c.ID)
					if err != nil {
						return err
					}
					pct := "no data"
					if summary.Percentage != nil {
						pct = fmt.Sprintf("%.1f%%", *summary.Percentage)
					}
					effective := ""
					if c.EffectiveDate != nil {
						effective = *c.EffectiveDate
					}
					tw.AppendRow(table.Row{c.ID, c.Name, c.Status, c.ReportingFrequency, effective, pct})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func contractShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetContract(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func contractUpdateCmd() *cobra.Command {
	var name, signatureDate, effectiveDate, expirationDate, frequency, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ContractUpdateOptions{
				ID:      args[0],
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("signature-date") {
				opts.SignatureDate = &signatureDate
			}
			if cmd.Flags().Changed("effective-date") {
				opts.EffectiveDate = &effectiveDate
			}
			if cmd.Flags().Changed("expiration-date") {
				opts.ExpirationDate = &expirationDate
			}
			if cmd.Flags().Changed("frequency") {
				opts.Frequency = &frequency
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateContract(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "contract name")
	cmd.Flags().StringVar(&signatureDate, "signature-date", "", "signature date")
	cmd.Flags().StringVar(&effectiveDate, "effective-date", "", "effective date")
	cmd.Flags().StringVar(&expirationDate, "expiration-date", "", "expiration date")
	cmd.Flags().StringVar(&frequency, "frequency", "", "reporting frequency")
	cmd.Flags().StringVar(&status, "status", "", "status")
	return cmd
}

func contractActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: "Activate contract (generates periods on first activation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ActivateContract(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func contractPeriodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods <id>",
		Short: "List reporting periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetContract(ctx, args[0]); err != nil {
					return err
				}
				items, err := r.ListPeriods(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func contractGeneratePeriodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-periods <id>",
		Short: "Generate reporting periods explicitly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				periods, err := e.GenerateReportingPeriods(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(periods)
			})
		},
	}
	return cmd
}

func contractComplianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance <id>",
		Short: "Latest compliance summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetContract(ctx, args[0]); err != nil {
					return err
				}
				summary, err := e.ContractCompliance(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(summary)
				}
				if summary.Percentage == nil {
					fmt.Println("Compliance: no data")
					return nil
				}
				fmt.Printf("Compliance: %.1f%% (period ending %s)\n", *summary.Percentage, summary.PeriodEnd)
				return nil
			})
		},
	}
	return cmd
}

func sliCmd() *cobra.Command {
	s := &cobra.Command{Use: "sli", Short: "Manage service level indicators"}
	s.AddCommand(sliCreateCmd())
	s.AddCommand(sliListCmd())
	return s
}

func sliCreateCmd() *cobra.Command {
	var name, description, unit string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create indicator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSLI(ctx, name, description, unit, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "indicator name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of measure")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func sliListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indicators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSLIs(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func slaCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "sla",
		Short: "Manage SLA nodes",
		Long:  "SLA nodes form a tree per contract. Nodes without an indicator group others; nodes with one bind a MIN or MAX threshold evaluated against the period's measurement.",
	}
	s.AddCommand(slaCreateCmd())
	s.AddCommand(slaListCmd())
	return s
}

func slaCreateCmd() *cobra.Command {
	var opts engine.SLACreateOptions
	var threshold float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create SLA node",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("threshold-value") {
				opts.ThresholdValue = &threshold
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSLA(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "node id (optional)")
	cmd.Flags().StringVar(&opts.ContractID, "contract", "", "contract id")
	cmd.Flags().StringVar(&opts.ParentID, "parent", "", "parent node id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "node name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.SLIID, "sli", "", "bound indicator id")
	cmd.Flags().StringVar(&opts.ThresholdType, "threshold-type", "", "threshold type (MIN, MAX)")
	cmd.Flags().Float64Var(&threshold, "threshold-value", 0, "threshold value")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func slaListCmd() *cobra.Command {
	var contractID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List SLA nodes of a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetContract(ctx, contractID); err != nil {
					return err
				}
				items, err := r.ListSLAs(ctx, contractID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&contractID, "contract", "", "contract id")
	_ = cmd.MarkFlagRequired("contract")
	return cmd
}

func measureCmd() *cobra.Command {
	m := &cobra.Command{Use: "measure", Short: "Record and list measurements"}
	m.AddCommand(measureRecordCmd())
	m.AddCommand(measureListCmd())
	return m
}

func measureRecordCmd() *cobra.Command {
	var opts engine.MeasurementOptions
	var calculated float64
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a measurement (upserts per period and indicator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("calculated-value") {
				opts.CalculatedValue = &calculated
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RecordMeasurement(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.PeriodID, "period", "", "reporting period id")
	cmd.Flags().StringVar(&opts.SLIID, "sli", "", "indicator id")
	cmd.Flags().Float64Var(&opts.ReportedValue, "reported-value", 0, "reported value")
	cmd.Flags().Float64Var(&calculated, "calculated-value", 0, "calculated value (defaults to reported)")
	cmd.Flags().BoolVar(&opts.IsDisputed, "disputed", false, "mark as disputed")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("sli")
	_ = cmd.MarkFlagRequired("reported-value")
	return cmd
}

func measureListCmd() *cobra.Command {
	var periodID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List measurements of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetPeriod(ctx, periodID); err != nil {
					return err
				}
				items, err := r.ListMeasurements(ctx, periodID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "reporting period id")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func reportCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "report",
		Short: "Generate and inspect compliance reports",
	}
	r.AddCommand(reportGenerateCmd())
	r.AddCommand(reportShowCmd())
	r.AddCommand(reportTreeCmd())
	r.AddCommand(reportRegenerateCmd())
	return r
}

func reportGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <period-id>",
		Short: "Generate the report for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, items, err := e.GenerateReport(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"report": report, "items": items})
			})
		},
	}
	return cmd
}

func reportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <period-id>",
		Short: "Show the report for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.Repo.GetReportByPeriod(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := e.Repo.ListReportItems(ctx, report.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"report": report, "items": items})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"SLA", "Measurement", "Compliant"})
				for _, item := range items {
					tw.AppendRow(table.Row{item.SLAID, item.MeasurementID, item.IsCompliant})
				}
				tw.Render()
				if pct, ok := compliance.Percentage(items); ok {
					fmt.Printf("Compliance: %.1f%%\n", pct)
				} else {
					fmt.Println("Compliance: no data")
				}
				return nil
			})
		},
	}
	return cmd
}

func reportTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <period-id>",
		Short: "Show the report as an SLA tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				nodes, err := e.ReportTree(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(nodes)
				}
				for i, n := range nodes {
					printSLATree(n, "", i == len(nodes)-1)
				}
				return nil
			})
		},
	}
	return cmd
}

func reportRegenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate <contract-id>",
		Short: "Regenerate every existing report of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetContract(ctx, args[0]); err != nil {
					return err
				}
				n, err := e.RegenerateContractReports(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"contract_id": args[0], "reports": n})
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in slatrack.yml at the workspace root: the period generation horizon and webhook targets for the API server.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, viper.GetString("tenant"), evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := seed.Demo(ctx, e)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Slatrack API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSLATree(n *compliance.TreeNode, prefix string, last bool) {
	connector := "├── "
	newPrefix := prefix + "│   "
	if last {
		connector = "└── "
		newPrefix = prefix + "    "
	}
	verdict := ""
	if n.Item != nil {
		if n.Item.IsCompliant {
			verdict = " [compliant]"
		} else {
			verdict = " [NOT compliant]"
		}
	}
	fmt.Printf("%s%s%s%s\n", prefix, connector, n.SLA.Name, verdict)
	for i, c := range n.Children {
		printSLATree(c, newPrefix, i == len(n.Children)-1)
	}
}
