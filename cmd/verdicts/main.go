// Command verdicts queries stored classification verdicts.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"scamwatch/internal/domain"
	"scamwatch/internal/entitykey"
	pgstore "scamwatch/internal/storage/postgres"
)

func main() {
	var dsn string

	root := &cobra.Command{
		Use:          "verdicts",
		Short:        "Query scam-risk verdicts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "postgres-dsn", os.Getenv("SCAMWATCH_POSTGRES_DSN"), "PostgreSQL connection string")

	root.AddCommand(
		&cobra.Command{
			Use:   "history <contract-address-or-handle>",
			Short: "Print every verdict ever recorded for an entity, oldest first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStores(cmd.Context(), dsn, func(ctx context.Context, pool *pgstore.Pool) error {
					key, err := normalizeKey(args[0])
					if err != nil {
						return err
					}
					verdicts, err := pgstore.NewVerdictStore(pool).History(ctx, key)
					if err != nil {
						return err
					}
					if len(verdicts) == 0 {
						fmt.Printf("no verdicts for %s\n", key)
						return nil
					}
					printVerdicts(verdicts)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "latest <contract-address-or-handle>",
			Short: "Print the current verdict for an entity",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStores(cmd.Context(), dsn, func(ctx context.Context, pool *pgstore.Pool) error {
					key, err := normalizeKey(args[0])
					if err != nil {
						return err
					}
					v, err := pgstore.NewVerdictStore(pool).Latest(ctx, key)
					if err != nil {
						return err
					}
					if v == nil {
						fmt.Printf("no verdicts for %s\n", key)
						return nil
					}
					printVerdicts([]domain.Verdict{*v})
					return nil
				})
			},
		},
		listCmd(&dsn),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func listCmd(dsn *string) *cobra.Command {
	var (
		kind  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked entities with their current verdict, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			k := domain.EntityKind(kind)
			if !k.IsValid() {
				return fmt.Errorf("unknown kind %q, want %s or %s",
					kind, domain.KindTokenContract, domain.KindSocialAccount)
			}
			return withStores(cmd.Context(), *dsn, func(ctx context.Context, pool *pgstore.Pool) error {
				entities, err := pgstore.NewEntityStore(pool).ListByKind(ctx, k, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ENTITY\tCATEGORY\tRISK\tLAST SEEN")
				for _, e := range entities {
					category, risk := "-", "-"
					if e.CurrentVerdict != nil {
						category = string(e.CurrentVerdict.Category)
						risk = fmt.Sprintf("%.2f", e.CurrentVerdict.RiskScore)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						e.Key, category, risk, formatMillis(e.LastSeen))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.KindTokenContract), "entity kind to list")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entities to print")
	return cmd
}

func withStores(ctx context.Context, dsn string, fn func(context.Context, *pgstore.Pool) error) error {
	if dsn == "" {
		return fmt.Errorf("--postgres-dsn is required (or set SCAMWATCH_POSTGRES_DSN)")
	}
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool)
}

// normalizeKey accepts whatever formatting the operator pasted in: a
// checksummed address, an @handle, or a full profile URL.
func normalizeKey(raw string) (string, error) {
	if key, err := entitykey.NormalizeContractAddress(raw); err == nil {
		return key, nil
	}
	return entitykey.NormalizeHandle(raw)
}

func printVerdicts(verdicts []domain.Verdict) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCED\tCATEGORY\tRISK\tCLASSIFIER\tRATIONALE")
	for _, v := range verdicts {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			formatMillis(v.ProducedAt), v.Category, v.RiskScore, v.ClassifierVersion, v.Rationale)
	}
	w.Flush()
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
