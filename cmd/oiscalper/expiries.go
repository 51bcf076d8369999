package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/dhan"
)

func expiriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expiries",
		Short: "List the expiries each configured candidate reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			today := pl.hours.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SECURITY\tSEGMENT\tNEAREST\tEXPIRIES")

			found := 0
			for _, c := range cfg.Instrument.Candidates {
				dates, err := pl.client.ListExpiries(cmd.Context(), c.SecurityID, c.Segment)
				if err != nil {
					logger.Warn("expiry list failed",
						zap.Int("securityId", c.SecurityID),
						zap.String("segment", c.Segment),
						zap.String("kind", string(dhan.KindOf(err))),
						zap.Error(err))
					fmt.Fprintf(w, "%d\t%s\t-\t(%s)\n", c.SecurityID, c.Segment, dhan.KindOf(err))
					continue
				}

				nearest, err := dhan.NearestExpiry(dates, today)
				if err != nil {
					nearest = "-"
				} else {
					found++
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.SecurityID, c.Segment, nearest, strings.Join(dates, ","))
			}

			if err := w.Flush(); err != nil {
				return err
			}

			if weekday, ok := cfg.Instrument.Weekday(); ok {
				fmt.Printf("\nweekly fallback: %s\n", dhan.WeeklyExpiry(today, weekday, cfg.Instrument.ExpiryCutoffHour))
			}
			if found == 0 {
				return dhan.ErrNoExpiry
			}
			return nil
		},
	}
}
