package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/gallery"
	"github.com/ashureev/covenant/internal/prompt"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

const (
	defaultServer = "http://localhost:8080"
	excerptChars  = 60
)

type options struct {
	server  string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "covenantctl",
		Short: "Browse and upvote the covenant gallery",
		Long: `covenantctl talks to a running covenant server.

Available subcommands:
  list     - Show the most recent covenants
  upvote   - Upvote a covenant by id
  insights - Show community statistics and the narrative`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("COVENANT_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "covenant server base URL (env COVENANT_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")

	root.AddCommand(newListCmd(opts), newUpvoteCmd(opts), newInsightsCmd(opts))
	return root
}

func newListCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent covenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, cancel, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			covenants, err := client.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("list covenants: %w", err)
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), covenants)
			}
			return printCovenants(cmd.OutOrStdout(), covenants)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of covenants to show (max 100)")
	return cmd
}

func newUpvoteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upvote ID",
		Short: "Upvote a covenant by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, cancel, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			id := args[0]
			upvotes, err := client.Upvote(ctx, id)
			var apiErr *gallery.APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				return errors.New(apiErr.Message)
			}
			if err != nil {
				return fmt.Errorf("upvote: %w", err)
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), map[string]int{"upvotes": upvotes})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d upvotes\n", id, upvotes)
			return err
		},
	}
}

func newInsightsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show community statistics and the narrative",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, cancel, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			summary, err := client.Insights(ctx)
			if err != nil {
				return fmt.Errorf("insights: %w", err)
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Covenants:       %d\n", summary.TotalCovenants)
			fmt.Fprintf(out, "Upvotes:         %d\n", summary.TotalUpvotes)
			fmt.Fprintf(out, "Last 30 days:    %d\n", summary.RecentCovenants)
			if summary.Narrative != "" {
				fmt.Fprintf(out, "\n%s\n", summary.Narrative)
			}
			return nil
		},
	}
}

func (o *options) connect(cmd *cobra.Command) (*gallery.Client, context.Context, context.CancelFunc, error) {
	client, err := gallery.NewClient(o.server, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	return client, ctx, cancel, nil
}

func printCovenants(w io.Writer, covenants []domain.Covenant) error {
	if len(covenants) == 0 {
		_, err := fmt.Fprintln(w, "No covenants yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUPVOTES\tCREATED\tCOVENANT")
	for _, c := range covenants {
		excerpt := strings.Join(strings.Fields(prompt.Truncate(c.CovenantText, excerptChars)), " ")
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", c.ID, c.DisplayName, c.Upvotes, c.CreatedAt.Format(time.DateOnly), excerpt)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
