package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loanproof/loanproof/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
	authToken string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loanproof",
	Short: "LoanProof audit ledger CLI",
	Long: `loanproof is the command-line interface for the LoanProof audit ledger.

It allows you to append events to a loan's hash chain, read chains back,
and verify chain integrity against a LoanProof server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.loanproof")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("auth_token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.loanproof/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "LoanProof server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token used to attribute appends to a principal")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	return client.New(serverURL, opts...)
}

// ── append ───────────────────────────────────────────────────────────────────

var (
	appendEventType string
	appendData      string
	appendAmount    string
	appendActor     string
)

var appendCmd = &cobra.Command{
	Use:   "append <loan-id>",
	Short: "Append an event to a loan's audit chain",
	Long: `Append records a new event at the tip of a loan's hash chain.

The event data must be a JSON object:

  loanproof append LOAN-123 --type payment_received \
    --data '{"method":"ach","reference":"TXN-9"}' \
    --amount 1500.00 --by officer@bank.example`,
	Args: cobra.ExactArgs(1),
	RunE: runAppend,
}

func init() {
	appendCmd.Flags().StringVar(&appendEventType, "type", "", "Event type (required)")
	appendCmd.Flags().StringVar(&appendData, "data", "{}", "Event data as a JSON object")
	appendCmd.Flags().StringVar(&appendAmount, "amount", "", "Monetary amount as a decimal string")
	appendCmd.Flags().StringVar(&appendActor, "by", "", "Principal performing the event (required)")
	appendCmd.MarkFlagRequired("type") //nolint:errcheck
	appendCmd.MarkFlagRequired("by")   //nolint:errcheck
}

func runAppend(cmd *cobra.Command, args []string) error {
	req := client.AppendRequest{
		SubjectID:   args[0],
		EventType:   appendEventType,
		EventData:   json.RawMessage(appendData),
		PerformedBy: appendActor,
	}
	if appendAmount != "" {
		req.Amount = &appendAmount
	}

	entry, err := newClient().Append(context.Background(), req)
	if err != nil {
		return err
	}

	fmt.Printf("Appended entry #%d to %s\n", entry.SequenceNum, entry.SubjectID)
	fmt.Printf("Hash:      %s\n", entry.CurrentHash)
	fmt.Printf("Previous:  %s\n", entry.PreviousHash)
	fmt.Printf("Timestamp: %s\n", entry.Timestamp.Format(time.RFC3339Nano))
	return nil
}

// ── read ─────────────────────────────────────────────────────────────────────

var (
	readFormat string
	readLatest bool
)

var readCmd = &cobra.Command{
	Use:   "read <loan-id>",
	Short: "Read a loan's audit chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVar(&readFormat, "format", "text", "Output format: text or json")
	readCmd.Flags().BoolVar(&readLatest, "latest", false, "Show only the most recent entry")
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c := newClient()

	if readLatest {
		entry, err := c.Latest(ctx, args[0])
		if err != nil {
			return err
		}
		if readFormat == "json" {
			return printJSON(entry)
		}
		fmt.Printf("Entry #%d  %s\n", entry.SequenceNum, entry.EventType)
		fmt.Printf("Hash:      %s\n", entry.CurrentHash)
		fmt.Printf("By:        %s\n", entry.PerformedBy)
		fmt.Printf("Timestamp: %s\n", entry.Timestamp.Format(time.RFC3339))
		return nil
	}

	result, err := c.Read(ctx, args[0])
	if err != nil {
		return err
	}
	if readFormat == "json" {
		return printJSON(result)
	}

	fmt.Printf("Loan %s: %d entries (valid: %v)\n\n", result.SubjectID, result.TotalEntries, result.Verification.IsValid)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tEVENT\tAMOUNT\tBY\tTIMESTAMP\tHASH")
	for _, e := range result.Entries {
		amount := "-"
		if e.Amount != nil {
			amount = *e.Amount
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.SequenceNum, e.EventType, amount, e.PerformedBy,
			e.Timestamp.Format(time.RFC3339), shortHash(e.CurrentHash))
	}
	return w.Flush()
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyFormat string
	verifyNotify bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <loan-id> [loan-id] ...",
	Short: "Verify the integrity of one or more loan chains",
	Long: `Verify recomputes hashes and chain links for each loan and reports
every discrepancy found. With more than one loan ID, verification runs
as a batch and results are shown as a table.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "Output format: text or json")
	verifyCmd.Flags().BoolVar(&verifyNotify, "notify", false, "Dispatch tamper alerts for invalid chains")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c := newClient()

	if len(args) == 1 {
		result, err := c.Verify(ctx, args[0], verifyNotify)
		if err != nil {
			return err
		}
		if verifyFormat == "json" {
			return printJSON(result)
		}
		if result.IsValid {
			fmt.Printf("Loan %s: VALID (%d entries)\n", result.SubjectID, result.TotalEntries)
			return nil
		}
		fmt.Printf("Loan %s: TAMPERED (%d entries)\n", result.SubjectID, result.TotalEntries)
		if len(result.InvalidEntries) > 0 {
			fmt.Printf("Invalid entries: %v\n", result.InvalidEntries)
		}
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		if result.Alert != nil {
			fmt.Printf("Alert sent: %v (recipients: %s)\n", result.Alert.Sent, strings.Join(result.Alert.Recipients, ", "))
		}
		return nil
	}

	batch, err := c.BatchVerify(ctx, args, verifyNotify)
	if err != nil {
		return err
	}
	if verifyFormat == "json" {
		return printJSON(batch)
	}

	fmt.Printf("Verified %d loans: %d valid, %d tampered\n\n", batch.Total, batch.Valid, batch.Tampered)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOAN\tSTATUS\tERRORS")
	for _, r := range batch.Results {
		status := "valid"
		if !r.IsValid {
			status = "TAMPERED"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", r.SubjectID, status, r.ErrorCount)
	}
	return w.Flush()
}

// ── sweep ────────────────────────────────────────────────────────────────────

var sweepSecret string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a full integrity sweep across all loans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepSecret == "" {
			sweepSecret = viper.GetString("sweep_secret")
		}
		if sweepSecret == "" {
			return fmt.Errorf("sweep secret required (--secret or LOANPROOF sweep_secret config)")
		}

		result, err := newClient().Sweep(context.Background(), sweepSecret)
		if err != nil {
			return err
		}

		fmt.Printf("Swept %d loans: %d valid, %d tampered\n",
			result.Results.TotalLoans, result.Results.ValidLoans, result.Results.TamperedLoans)
		for _, id := range result.Results.TamperedLoanIDs {
			fmt.Printf("  TAMPERED: %s\n", id)
		}
		for _, e := range result.Results.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepSecret, "secret", "", "Sweep authorization secret")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the loanproof CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("loanproof %s\n", version)
	},
}

// ── helpers ──────────────────────────────────────────────────────────────────

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12] + "…"
	}
	return h
}
