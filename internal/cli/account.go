package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"faceswap/internal/apiclient"
)

// NewBalanceCommand creates `swapctl balance`.
func NewBalanceCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the remaining credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.client()
			if err != nil {
				return err
			}
			credits, err := client.Credits(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "balance", Err: err}
			}
			return printResult(cmd.OutOrStdout(), root.Format, credits, func(w io.Writer) {
				fmt.Fprintf(w, "%d credits\n", credits.RemainCount)
			})
		},
	}
}

// NewHistoryCommand creates `swapctl history`.
func NewHistoryCommand(root *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generations from the last three days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.client()
			if err != nil {
				return err
			}
			items, err := client.History(cmd.Context(), limit)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "history", Err: err}
			}
			return printResult(cmd.OutOrStdout(), root.Format, items, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CREATED\tTYPE\tMETHOD\tCREDITS\tEXPIRES\tRESULT")
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
						it.CreatedAt.Local().Format(time.DateTime), it.Type, it.Method, it.Credits,
						it.ExpiresAt.Local().Format(time.DateTime), it.ResultURL)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to list")
	return cmd
}

// NewTokenCommand creates `swapctl token`, which mints a user token with the
// ledger service key. Intended for operators and local testing.
func NewTokenCommand(root *RootOptions) *cobra.Command {
	var ledgerURL, serviceKey, userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a user token from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || serviceKey == "" {
				return &ExitError{Code: ExitCommandError, Message: "--user and --service-key are required"}
			}
			tok, err := apiclient.FetchToken(cmd.Context(), httpClient(root.Timeout), ledgerURL, serviceKey, userID, root.Locale)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "token", Err: err}
			}
			return printResult(cmd.OutOrStdout(), root.Format, map[string]string{"token": tok}, func(w io.Writer) {
				fmt.Fprintln(w, tok)
			})
		},
	}
	cmd.Flags().StringVar(&ledgerURL, "ledger-url", envOr("LEDGER_BASE_URL", "http://localhost:8081"), "ledger base URL")
	cmd.Flags().StringVar(&serviceKey, "service-key", os.Getenv("LEDGER_SERVICE_KEY"), "ledger service key")
	cmd.Flags().StringVar(&userID, "user", "", "user id to mint a token for")
	return cmd
}
