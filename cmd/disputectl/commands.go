package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitstack/fitstack-disputes/config"
	"github.com/fitstack/fitstack-disputes/internal/app"
	"github.com/fitstack/fitstack-disputes/internal/casework"
	"github.com/fitstack/fitstack-disputes/internal/dispute"
	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// withService loads configuration, wires the service and runs fn with it.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *casework.Service) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	return fn(ctx, deps.Service)
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [dispute-id]",
		Short: "Load a dispute and show its stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				d, err := svc.Inspect(ctx, args[0])
				if err != nil {
					return err
				}
				return printDisputes(cmd, d)
			})
		},
	}
}

func representCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "represent [dispute-id]",
		Short: "Contest a chargeback with evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			narrative, _ := cmd.Flags().GetString("narrative")
			paths, _ := cmd.Flags().GetStringSlice("doc")

			ev := dispute.NewEvidence(narrative)
			for _, p := range paths {
				doc, err := dispute.DocumentFromPath(p)
				if err != nil {
					return err
				}
				ev = ev.With(doc)
			}
			// Fail before any configuration or network work.
			if err := ev.Validate(); err != nil {
				return err
			}

			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				next, err := svc.Represent(ctx, args[0], ev)
				if err != nil {
					return err
				}
				return printDisputes(cmd, next)
			})
		},
	}

	cmd.Flags().StringP("narrative", "m", "", "Rebuttal text sent with the evidence")
	cmd.Flags().StringSliceP("doc", "d", nil, "Evidence file (repeatable, max 8)")
	_ = cmd.MarkFlagRequired("narrative")

	return cmd
}

func acceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept [dispute-id]",
		Short: "Accept liability for a chargeback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				next, err := svc.AcceptLiability(ctx, args[0])
				if err != nil {
					return err
				}
				return printDisputes(cmd, next)
			})
		},
	}
}

func arbitrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arbitrate [dispute-id]",
		Short: "Escalate a pre-arbitration case to the card network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				next, err := svc.RequestArbitration(ctx, args[0])
				if err != nil {
					return err
				}
				return printDisputes(cmd, next)
			})
		},
	}
}

func actionableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actionable",
		Short: "List a merchant's disputes awaiting a response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			merchant, _ := cmd.Flags().GetString("merchant")
			cycle, _ := cmd.Flags().GetString("cycle")

			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				var (
					found []dispute.Dispute
					err   error
				)
				if cycle != "" {
					found, err = svc.ByCycle(ctx, merchant, domain.Cycle(cycle))
				} else {
					found, err = svc.Actionable(ctx, merchant)
				}
				if err != nil {
					return err
				}
				return printDisputes(cmd, found...)
			})
		},
	}

	cmd.Flags().String("merchant", "", "Payrix merchant id")
	cmd.Flags().String("cycle", "", "List one cycle (e.g. first, preArbitration) instead of actionable disputes")
	_ = cmd.MarkFlagRequired("merchant")

	return cmd
}

func forTxnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "for-txn [transaction-id]",
		Short: "List every dispute raised against a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				found, err := svc.ForTransaction(ctx, args[0])
				if err != nil {
					return err
				}
				return printDisputes(cmd, found...)
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reload a merchant's actionable disputes and record their stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			merchant, _ := cmd.Flags().GetString("merchant")

			return withService(cmd, func(ctx context.Context, svc *casework.Service) error {
				results, err := svc.Sweep(ctx, merchant)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				failed := 0
				for _, r := range results {
					if r.Err != nil {
						failed++
						fmt.Fprintf(out, "%-24s ERROR %v\n", r.ID, r.Err)
						continue
					}
					fmt.Fprintf(out, "%-24s %s\n", r.ID, r.Stage)
				}
				fmt.Fprintf(out, "%d disputes, %d failed\n", len(results), failed)
				return nil
			})
		},
	}

	cmd.Flags().String("merchant", "", "Payrix merchant id")
	_ = cmd.MarkFlagRequired("merchant")

	return cmd
}

type disputeSummary struct {
	ID         string   `json:"id"`
	Stage      string   `json:"stage"`
	Cycle      string   `json:"cycle"`
	Status     string   `json:"status"`
	Amount     int64    `json:"amount"`
	Currency   string   `json:"currency,omitempty"`
	Actionable bool     `json:"actionable"`
	Actions    []string `json:"actions"`
}

func summarize(d dispute.Dispute) disputeSummary {
	rec := d.Record()
	s := disputeSummary{
		ID:         d.ID(),
		Stage:      d.Stage().String(),
		Cycle:      string(rec.Cycle),
		Status:     string(rec.Status),
		Amount:     rec.Amount,
		Currency:   rec.Currency,
		Actionable: rec.Actionable,
		Actions:    []string{},
	}
	for _, a := range dispute.AllowedActions(d) {
		s.Actions = append(s.Actions, string(a))
	}
	return s
}

func printDisputes(cmd *cobra.Command, ds ...dispute.Dispute) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	summaries := make([]disputeSummary, 0, len(ds))
	for _, d := range ds {
		summaries = append(summaries, summarize(d))
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(out, "No disputes found.")
		return nil
	}
	for _, s := range summaries {
		printSummary(out, s)
	}
	return nil
}

func printSummary(out io.Writer, s disputeSummary) {
	actions := "none"
	if len(s.Actions) > 0 {
		actions = strings.Join(s.Actions, ", ")
	}
	fmt.Fprintf(out, "%-24s %-16s %8d %-3s  actions: %s\n", s.ID, s.Stage, s.Amount, s.Currency, actions)
}
