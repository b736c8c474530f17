package cli

import (
	"fmt"

	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/internal/services"
	"github.com/spf13/cobra"
)

func newAuditOverlapsCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "audit-overlaps",
		Short: "Check stored bookings against the reservation rules",
		Long: "Scan active bookings for overlapping stays on flexible rentals and for " +
			"properties holding more than one active whole-unit reservation. " +
			"Exits non-zero when a violation is found.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			svc := services.NewReconciliationService(store, newLogger(cmd.ErrOrStderr()))
			violations, err := svc.ReservationViolations(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isJSON() {
				if violations == nil {
					violations = []models.ReservationViolation{}
				}
				if err := printJSON(out, violations); err != nil {
					return err
				}
			} else if len(violations) == 0 {
				fmt.Fprintln(out, "No reservation violations found.")
			} else {
				for _, v := range violations {
					fmt.Fprintf(out, "%-9s property %s: booking %s conflicts with %s\n",
						v.Rule, v.PropertyID, v.BookingID, v.OtherBookingID)
				}
			}

			if len(violations) > 0 {
				return fmt.Errorf("found %d reservation violation(s)", len(violations))
			}
			return nil
		},
	}
}

func newRefundReportCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "refund-report",
		Short: "List cancelled bookings still marked paid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			svc := services.NewReconciliationService(store, newLogger(cmd.ErrOrStderr()))
			bookings, err := svc.PendingRefunds(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isJSON() {
				if bookings == nil {
					bookings = []*models.Booking{}
				}
				return printJSON(out, bookings)
			}

			if len(bookings) == 0 {
				fmt.Fprintln(out, "No refunds pending.")
				return nil
			}

			var total float64
			for _, b := range bookings {
				total += b.TotalAmount
				fmt.Fprintf(out, "%s  property %s  %10.2f  cancelled %s\n",
					b.ID, b.PropertyID, b.TotalAmount, b.UpdatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(out, "%d booking(s), %.2f owed\n", len(bookings), total)
			return nil
		},
	}
}
