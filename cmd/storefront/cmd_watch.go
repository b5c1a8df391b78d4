package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/internal/kernel"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/notification"
)

var watchLimit int

// storefront watch <testimonials|feedback>
var watchCmd = &cobra.Command{
	Use:   "watch <testimonials|feedback>",
	Short: "Follow a live view and print every snapshot",
	Long: "Activates a live view in the terminal and prints each snapshot until Ctrl+C.\n" +
		"Changes made by other processes only arrive with REALTIME_DRIVER=redis.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"testimonials", "feedback"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		k, err := kernel.Boot(ctx, kernel.Options{})
		if err != nil {
			return err
		}
		defer k.Close()

		out := cmd.OutOrStdout()
		notices := notification.Func(func(_ context.Context, n notification.Notice) {
			fmt.Fprintf(out, "[%s] %s: %s\n", n.Severity, n.Title, n.Message)
		})

		fmt.Fprintf(out, "Watching %s. Press Ctrl+C to stop.\n", args[0])
		switch args[0] {
		case "testimonials":
			limit := watchLimit
			if limit < 1 {
				limit = k.Testimonials.Limit()
			}
			v := k.Testimonials.NewView(limit, notices)
			return v.Watch(ctx, func(s livequery.Snapshot[models.Testimonial]) {
				printSnapshot(out, s, formatTestimonial)
			})
		case "feedback":
			v := k.Moderation.NewView(notices)
			return v.Watch(ctx, func(s livequery.Snapshot[models.EnrichedFeedback]) {
				printSnapshot(out, s, formatFeedback)
			})
		default:
			return fmt.Errorf("unknown view %q (want testimonials or feedback)", args[0])
		}
	},
}

func init() {
	watchCmd.Flags().IntVarP(&watchLimit, "limit", "l", 0, "Testimonials to show (default TESTIMONIAL_LIMIT)")
}

func printSnapshot[T any](w io.Writer, s livequery.Snapshot[T], format func(T) string) {
	fmt.Fprintf(w, "\n== %s (%d)\n", s.State, len(s.Records))
	if s.Message != "" {
		fmt.Fprintf(w, "  %s\n", s.Message)
	}
	for _, r := range s.Records {
		fmt.Fprintf(w, "  %s\n", format(r))
	}
}

func formatTestimonial(t models.Testimonial) string {
	return fmt.Sprintf("%s %s %s (%s): %s", stars(t.Rating), t.Date, t.Author, t.Role, t.Content)
}

func formatFeedback(f models.EnrichedFeedback) string {
	status := "pending"
	if f.Approved {
		status = "approved"
	}
	return fmt.Sprintf("%s %-8s %s  %s <%s> on %s: %s",
		stars(f.Rating), status, f.ID, f.UserName, f.UserEmail, f.ProductName, f.Comment)
}

func stars(n int) string {
	if n < 0 || n > 5 {
		n = 0
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}
