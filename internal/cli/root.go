// Package cli implements swapctl, the command-line client for the
// generation API.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"faceswap/internal/apiclient"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL  string
	Token   string
	Locale  string
	Format  string // "json" | "text"
	Timeout time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the swapctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "swapctl",
		Short: "Submit and track face-swap jobs",
		Long:  "swapctl submits image, pipeline and video jobs to the generation API, waits for them and reads credits and history.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", envOr("SWAPCTL_API_URL", "http://localhost:8080"), "generation API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("SWAPCTL_TOKEN"), "bearer token issued by the ledger")
	cmd.PersistentFlags().StringVar(&opts.Locale, "locale", os.Getenv("SWAPCTL_LOCALE"), "preferred message locale (en or id)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "http-timeout", 60*time.Second, "per-request timeout")

	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewPipelineCommand(opts))
	cmd.AddCommand(NewVideoCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewWaitCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) client() (*apiclient.Client, error) {
	return apiclient.NewClient(apiclient.Options{
		BaseURL:    o.APIURL,
		Token:      o.Token,
		Locale:     o.Locale,
		HTTPClient: httpClient(o.Timeout),
	})
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
