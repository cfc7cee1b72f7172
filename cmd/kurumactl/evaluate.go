package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"kuruma/internal/compliance/handler"
	"kuruma/internal/compliance/service"
	accountStore "kuruma/internal/compliance/store/account"
	activityStore "kuruma/internal/compliance/store/activity"
	"kuruma/pkg/platform/i18n"
	"kuruma/pkg/requestcontext"
)

type evaluateOptions struct {
	accountType string
	sold        int
	listings    int
	lastSale    string
	lang        string
	timezone    string
	at          string
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate counters and print the compliance report",
		Example: `  kurumactl evaluate --type private --sold 0 --listings 1
  kurumactl evaluate --type guest --sold 2 --listings 0 --lang ja`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.accountType, "type", "", "account type: guest, private or dealer")
	f.IntVar(&opts.sold, "sold", 0, "vehicles sold this calendar year")
	f.IntVar(&opts.listings, "listings", 0, "currently active listings")
	f.StringVar(&opts.lastSale, "last-sale", "", "last sale time (RFC 3339)")
	f.StringVar(&opts.lang, "lang", "en", "message language")
	f.StringVar(&opts.timezone, "timezone", "Asia/Tokyo", "time zone for year boundaries")
	f.StringVar(&opts.at, "at", "", "evaluate as of this time (RFC 3339); defaults to now")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func runEvaluate(cmd *cobra.Command, opts *evaluateOptions) error {
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", opts.timezone, err)
	}
	now := time.Now().In(loc)
	if opts.at != "" {
		at, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = at.In(loc)
	}

	req := &handler.EvaluateRequest{
		AccountType:          opts.accountType,
		VehiclesSoldThisYear: &opts.sold,
		ActiveListings:       &opts.listings,
	}
	if opts.lastSale != "" {
		last, err := time.Parse(time.RFC3339, opts.lastSale)
		if err != nil {
			return fmt.Errorf("invalid --last-sale: %w", err)
		}
		req.LastSaleDate = &last
	}
	if err := req.Validate(); err != nil {
		return err
	}

	svc, err := service.New(accountStore.NewInMemory(), activityStore.NewInMemory())
	if err != nil {
		return err
	}
	tag, _ := i18n.ParseTag(opts.lang)
	ctx := requestcontext.WithTime(cmd.Context(), now)
	ctx = requestcontext.WithLanguage(ctx, tag)

	report, err := svc.EvaluateCounters(ctx, req.Counters())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), handler.ReportFrom(report))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
