// Package cli implements ledgerctl, the operator command line for the ledger.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// LedgerReader computes ledger reports; *ledger.Service satisfies it.
type LedgerReader interface {
	Ledger(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerResult, error)
	Summary(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerSummary, error)
	Transactions(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Transaction, error)
	Invoices(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Invoice, error)
	Payments(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Payment, error)
	Aging(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope) (ledger.AgingReport, error)
	Profile(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope) (ledger.CustomerProfile, error)
	Invalidate(ctx context.Context) (int64, error)
}

// Runtime holds the connected dependencies a command needs.
type Runtime struct {
	Ledger LedgerReader
	Jobs   *JobsCLI
}

// Opener connects the runtime lazily so --help works offline. The returned
// func releases every connection.
type Opener func(ctx context.Context) (*Runtime, func(), error)

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand(open Opener, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect customer ledgers and manage ledger jobs",
		Long: `ledgerctl computes customer ledgers straight from the database and
manages the background jobs that keep the ledger cache warm.

Configuration is read from the environment (PG_DSN, REDIS_ADDR, LEDGER_*),
optionally loaded from a .env file in the working directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReportCommand(open), newInvalidateCommand(open), newJobsCommand(open))
	return root
}

// Report views accepted by the report command.
const (
	viewFull         = "full"
	viewSummary      = "summary"
	viewTransactions = "transactions"
	viewInvoices     = "invoices"
	viewPayments     = "payments"
	viewAging        = "aging"
	viewProfile      = "profile"
)

type reportFlags struct {
	company string
	branch  string
	from    string
	to      string
	view    string
}

func newReportCommand(open Opener) *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report <customer-id>",
		Short: "Print a customer ledger report as JSON",
		Example: `  # Full ledger for March
  ledgerctl report 3fa85f64-5717-4562-b3fc-2c963f66afa6 --company 9c1f0d3e-0b7a-4d55-8f21-6a2e4c8b1d90 --from 2025-03-01 --to 2025-03-31

  # Aging as of today
  ledgerctl report 3fa85f64-5717-4562-b3fc-2c963f66afa6 --company 9c1f0d3e-0b7a-4d55-8f21-6a2e4c8b1d90 --view aging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, scope, window, err := flags.parse(args[0])
			if err != nil {
				return err
			}
			rt, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if rt.Ledger == nil {
				return errors.New("ledgerctl: ledger not configured")
			}
			value, err := loadView(cmd.Context(), rt.Ledger, flags.view, customerID, scope, window)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), value)
		},
	}
	cmd.Flags().StringVar(&flags.company, "company", "", "company id (required)")
	cmd.Flags().StringVar(&flags.branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&flags.from, "from", "", "window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.to, "to", "", "window end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.view, "view", viewFull, "one of full, summary, transactions, invoices, payments, aging, profile")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func (f reportFlags) parse(customerArg string) (uuid.UUID, ledger.CompanyScope, ledger.DateRange, error) {
	var (
		scope  ledger.CompanyScope
		window ledger.DateRange
	)
	customerID, err := uuid.Parse(strings.TrimSpace(customerArg))
	if err != nil {
		return uuid.Nil, scope, window, fmt.Errorf("invalid customer id: %w", err)
	}
	scope.CompanyID, err = uuid.Parse(strings.TrimSpace(f.company))
	if err != nil {
		return uuid.Nil, scope, window, fmt.Errorf("invalid company id: %w", err)
	}
	if f.branch != "" {
		branch, err := uuid.Parse(strings.TrimSpace(f.branch))
		if err != nil {
			return uuid.Nil, scope, window, fmt.Errorf("invalid branch id: %w", err)
		}
		scope.BranchID = &branch
	}
	if window.From, err = parseDate(f.from); err != nil {
		return uuid.Nil, scope, window, fmt.Errorf("invalid --from: %w", err)
	}
	if window.To, err = parseDate(f.to); err != nil {
		return uuid.Nil, scope, window, fmt.Errorf("invalid --to: %w", err)
	}
	return customerID, scope, window, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, value)
}

func loadView(ctx context.Context, reader LedgerReader, view string, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (any, error) {
	switch view {
	case viewFull, "":
		return reader.Ledger(ctx, customerID, scope, window)
	case viewSummary:
		return reader.Summary(ctx, customerID, scope, window)
	case viewTransactions:
		return reader.Transactions(ctx, customerID, scope, window)
	case viewInvoices:
		return reader.Invoices(ctx, customerID, scope, window)
	case viewPayments:
		return reader.Payments(ctx, customerID, scope, window)
	case viewAging:
		return reader.Aging(ctx, customerID, scope)
	case viewProfile:
		return reader.Profile(ctx, customerID, scope)
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
}

func newInvalidateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Bump the ledger cache version immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if rt.Ledger == nil {
				return errors.New("ledgerctl: ledger not configured")
			}
			version, err := rt.Ledger.Invalidate(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int64{"version": version})
		},
	}
}

func newJobsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect ledger background jobs",
	}

	var (
		limit  int
		reason string
	)
	trigger := &cobra.Command{
		Use:       "trigger <" + jobs.TaskLedgerWarmup + "|" + jobs.TaskLedgerInvalidate + ">",
		Short:     "Enqueue a ledger job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskLedgerWarmup, jobs.TaskLedgerInvalidate},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			info, err := rt.Jobs.Trigger(cmd.Context(), args[0], limit, reason)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
		},
	}
	trigger.Flags().IntVar(&limit, "limit", 0, "customers to warm (warmup only)")
	trigger.Flags().StringVar(&reason, "reason", "", "invalidation reason (invalidate only)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			out, err := rt.Jobs.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			tasks, err := rt.Jobs.ListScheduled(cmd.Context(), size)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, stats, scheduled)
	return cmd
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
