package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"railmon/internal/complaint"
	"railmon/internal/query"
)

func (a *app) updateCmd() *cobra.Command {
	var (
		status string
		u      complaint.Update
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a complaint's status (admin)",
		Long: `Move a complaint through its workflow.

A resolution can only be given when resolving, and an assignee only when
moving to inProgress. A resolved complaint can be reopened to pending but
not moved back to inProgress.

Examples:
  railmon update 65f1c2 --status inProgress --assign "Ravi (Coach staff)"
  railmon update 65f1c2 --status resolved --resolution "Water refilled at Kota"`,
		Args: cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			if status != "" {
				s, ok := complaint.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (want pending, inProgress or resolved)", status)
				}
				u.Status = s
			}

			cs, err := a.client.AllComplaints(ctx)
			if err != nil {
				return err
			}
			current, ok := query.Find(cs, args[0])
			if !ok {
				return fmt.Errorf("complaint %s not found", args[0])
			}
			if err := u.Validate(current.Status); err != nil {
				return err
			}

			if _, err := a.client.UpdateComplaint(ctx, current.ID, u); err != nil {
				return err
			}
			// The update response omits classification and sentiment, so the
			// result is merged onto the record we already have.
			updated := complaint.ApplyUpdate(current, u)
			zap.S().Infof("✅ %s: %s → %s", current.ID, current.Status.Label(), updated.Status.Label())

			return a.print(out, updated, func() string { return complaintDetail(updated) })
		}),
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "pending, inProgress or resolved")
	f.StringVar(&u.Resolution, "resolution", "", "resolution remarks (with --status resolved)")
	f.StringVar(&u.AssignedTo, "assign", "", "assignee (with --status inProgress)")
	return cmd
}

func (a *app) submitCmd() *cobra.Command {
	var s complaint.Submission
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "File a new complaint",
		Example: `  railmon submit --train 12951 --pnr 1234567890 --coach B2 --seat 34 \
    --from "New Delhi" --to "Mumbai Central" \
    --text "Water leaking from the roof near seat 34"`,
		Args: cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			c, err := a.client.CreateComplaint(ctx, s)
			if err != nil {
				return err
			}
			return a.print(out, c, func() string { return complaintDetail(c) })
		}),
	}
	f := cmd.Flags()
	f.StringVar(&s.TrainNumber, "train", "", "train number")
	f.StringVar(&s.PNRNumber, "pnr", "", "10-digit PNR")
	f.StringVar(&s.CoachNumber, "coach", "", "coach, e.g. B2")
	f.StringVar(&s.SeatNumber, "seat", "", "seat number")
	f.StringVar(&s.SourceStation, "from", "", "boarding station")
	f.StringVar(&s.DestinationStation, "to", "", "destination station")
	f.StringVar(&s.Complaint, "text", "", "complaint description (at least 20 characters)")
	return cmd
}
