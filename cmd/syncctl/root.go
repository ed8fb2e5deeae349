package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Addr    string
	Timeout time.Duration
	Format  string // "json" | "text"
}

var validFormats = []string{"text", "json"}

func (o *rootOptions) client() *client {
	return newClient(o.Addr, o.Timeout)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Control a running sync daemon",
		Long:  "syncctl inspects and drives the local control API of syncd.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "http://127.0.0.1:8090", "syncd control API address")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 6*time.Minute, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newResetCommand(opts))
	cmd.AddCommand(newReauthCommand(opts))
	cmd.AddCommand(newAutoSyncCommand(opts))
	cmd.AddCommand(newRecordsCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending changes and last sync times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, data, err := opts.client().do(cmd.Context(), http.MethodGet, "/status", nil)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			var st orchestrator.Status
			if err := json.Unmarshal(data, &st); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), &st)
			return nil
		},
	}
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var quick, async bool

	cmd := &cobra.Command{
		Use:   "sync [entity]",
		Short: "Run a full, quick or single-entity sync",
		Long: `Run a sync on the daemon and print its result.

Without arguments every entity type is synced in dependency order.

Examples:
  syncctl sync
  syncctl sync --quick
  syncctl sync items
  syncctl sync --async`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			ctx := cmd.Context()

			var path string
			switch {
			case async:
				if quick || len(args) > 0 {
					return errors.New("--async only schedules a full sync")
				}
				if _, _, err := c.do(ctx, http.MethodPost, "/sync?async=true", nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sync scheduled")
				return nil
			case quick:
				if len(args) > 0 {
					return errors.New("--quick cannot be combined with an entity")
				}
				path = "/sync/quick"
			case len(args) == 1:
				t, err := entity.ParseType(args[0])
				if err != nil {
					return err
				}
				path = "/sync/" + t.String()
			default:
				path = "/sync"
			}

			data, err := c.syncResult(ctx, path)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			return printSyncResult(cmd.OutOrStdout(), data, len(args) == 1)
		},
	}

	cmd.Flags().BoolVar(&quick, "quick", false, "only push pending changes")
	cmd.Flags().BoolVar(&async, "async", false, "schedule a background sync and return")

	return cmd
}

func newResetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget sync timestamps so the next sync pulls everything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, data, err := opts.client().do(cmd.Context(), http.MethodPost, "/reset", nil)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			var resp struct {
				Records int `json:"records"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync state reset, %d records marked for re-pull\n", resp.Records)
			return nil
		},
	}
}

func newReauthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reauth",
		Short: "Refresh credentials and resume syncing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := opts.client().do(cmd.Context(), http.MethodPost, "/reauth", nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "re-authenticated")
			return nil
		},
	}
}

func newAutoSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "auto-sync on|off",
		Short:     "Enable or disable background syncing",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			body := map[string]bool{"enabled": enabled}
			if _, _, err := opts.client().do(cmd.Context(), http.MethodPut, "/settings/auto-sync", body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "auto sync %s\n", args[0])
			return nil
		},
	}
}

func newRecordsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Read and edit local records",
	}

	var dirty bool
	list := &cobra.Command{
		Use:   "list <entity>",
		Short: "List local records of an entity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/records/" + args[0]
			if dirty {
				path += "?dirty=true"
			}
			_, data, err := opts.client().do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	list.Flags().BoolVar(&dirty, "dirty", false, "only records with unsynced changes")

	get := &cobra.Command{
		Use:   "get <entity> <id>",
		Short: "Show one local record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, data, err := opts.client().do(cmd.Context(), http.MethodGet, "/records/"+args[0]+"/"+args[1], nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}

	var data string
	save := &cobra.Command{
		Use:   "save <entity> [id]",
		Short: "Create a record, or update it when an id is given",
		Long: `Save a record locally and queue it for sync.

The payload is read from --data, or from stdin when --data is "-".

Examples:
  syncctl records save items --data '{"name":"Drill","status":"available"}'
  syncctl records save items tmp-0190... --data - < item.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readData(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			method, path := http.MethodPost, "/records/"+args[0]
			if len(args) == 2 {
				method, path = http.MethodPut, path+"/"+args[1]
			}
			_, resp, err := opts.client().do(cmd.Context(), method, path, body)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	save.Flags().StringVar(&data, "data", "", `JSON payload ("-" reads stdin)`)
	_ = save.MarkFlagRequired("data")

	del := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record locally and queue the deletion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := opts.client().do(cmd.Context(), http.MethodDelete, "/records/"+args[0]+"/"+args[1], nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}

	var verbData string
	perform := &cobra.Command{
		Use:   "perform <entity> <id> <verb>",
		Short: "Queue a custom action such as assign or return",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readData(cmd.InOrStdin(), verbData)
			if err != nil {
				return err
			}
			path := "/records/" + args[0] + "/" + args[1] + "/" + args[2]
			if _, _, err := opts.client().do(cmd.Context(), http.MethodPost, path, body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s/%s\n", args[2], args[0], args[1])
			return nil
		},
	}
	perform.Flags().StringVar(&verbData, "data", "", `JSON body of the action ("-" reads stdin)`)

	cmd.AddCommand(list, get, save, del, perform)
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream status and sync results until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			return opts.client().watch(ctx, func(frame []byte) error {
				if opts.Format == "json" {
					_, err := fmt.Fprintln(out, string(frame))
					return err
				}
				var msg struct {
					Type      string               `json:"type"`
					Timestamp time.Time            `json:"timestamp"`
					Status    *orchestrator.Status `json:"status"`
					Result    *orchestrator.Result `json:"result"`
				}
				if err := json.Unmarshal(frame, &msg); err != nil {
					return err
				}
				fmt.Fprintf(out, "[%s] %s\n", msg.Timestamp.Local().Format(time.TimeOnly), msg.Type)
				if msg.Result != nil {
					printResult(out, msg.Result)
				}
				if msg.Status != nil {
					printStatus(out, msg.Status)
				}
				return nil
			})
		},
	}
}

func readData(stdin io.Reader, data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	var body []byte
	if data == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		body = b
	} else {
		body = []byte(data)
	}
	if !json.Valid(body) {
		return nil, errors.New("payload is not valid JSON")
	}
	return body, nil
}

func writeJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func printStatus(w io.Writer, st *orchestrator.Status) {
	state := "idle"
	if st.IsSyncing {
		state = "syncing " + joinTypes(st.Syncing)
	}
	fmt.Fprintf(w, "State:      %s\n", state)
	fmt.Fprintf(w, "Auto sync:  %t\n", st.AutoSyncEnabled)
	fmt.Fprintf(w, "Pending:    %d\n", st.PendingCount)
	if st.LastFullSync != nil {
		fmt.Fprintf(w, "Last full:  %s\n", st.LastFullSync.Local().Format(time.RFC3339))
	}
	if st.AuthRequired {
		fmt.Fprintln(w, "Auth:       re-authentication required")
	}
	if st.HasError {
		fmt.Fprintf(w, "Last error: %s\n", st.LastError)
	}

	for _, t := range entity.SyncOrder {
		line := fmt.Sprintf("  %-12s pending=%d", t, st.PendingPerEntity[t])
		if at, ok := st.LastSyncPerEntity[t]; ok {
			line += " synced=" + at.Local().Format(time.RFC3339)
		}
		fmt.Fprintln(w, line)
	}
}

func printSyncResult(w io.Writer, data []byte, single bool) error {
	if single {
		var er orchestrator.EntityResult
		if err := json.Unmarshal(data, &er); err != nil {
			return err
		}
		printEntityResult(w, &er)
		return nil
	}
	var res orchestrator.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	printResult(w, &res)
	return nil
}

func printResult(w io.Writer, res *orchestrator.Result) {
	outcome := "ok"
	switch {
	case res.Reason != "":
		outcome = "skipped: " + res.Reason
	case !res.Success:
		outcome = "failed"
		if res.Error != "" {
			outcome += ": " + res.Error
		}
	}
	fmt.Fprintf(w, "%s sync %s\n", res.Kind, outcome)
	for _, er := range res.Entities {
		printEntityResult(w, er)
	}
}

func printEntityResult(w io.Writer, er *orchestrator.EntityResult) {
	if er.Reason != "" {
		fmt.Fprintf(w, "  %-12s skipped: %s\n", er.Type, er.Reason)
		return
	}
	fmt.Fprintf(w, "  %-12s replayed=%d created=%d updated=%d pulled=%d removed=%d conflicts=%d deferred=%d\n",
		er.Type, er.Replayed, er.Created, er.Updated, er.Pulled, er.Removed, er.Conflicts, er.Deferred)
	for _, pf := range er.PermanentFailures {
		fmt.Fprintf(w, "    dropped %s %s after %d attempts: %s\n", pf.Operation, pf.EntityID, pf.Attempts, pf.LastError)
	}
	for _, e := range er.Errors {
		fmt.Fprintf(w, "    error: %s\n", e)
	}
}

func joinTypes(types []entity.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// run executes the root command with ctx and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
