package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fastjson"

	transports "github.com/rzbill/filterlog/internal/cmd/client/transports"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/pager"
)

// NewLogsCommand constructs the `logs` command group and subcommands.
func NewLogsCommand() *cobra.Command {
	logsCmd := &cobra.Command{Use: "logs", Short: "Filter log operations"}
	logsCmd.AddCommand(
		newLogsIngestCommand(),
		newLogsPageCommand(),
		newLogsBrowseCommand(),
	)
	return logsCmd
}

func newLogsIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Append filter decisions from a JSON file or flags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, _ := cmd.Flags().GetString("device")
			file, _ := cmd.Flags().GetString("file")

			var recs []logstore.Record
			if file != "" {
				body, err := readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				var p fastjson.Parser
				envDev, parsed, err := logstore.ParseIngest(&p, body)
				if err != nil {
					return err
				}
				if dev == "" {
					dev = envDev
				}
				recs = parsed
			} else {
				r, err := recordFromFlags(cmd)
				if err != nil {
					return err
				}
				recs = []logstore.Record{r}
			}
			n, err := getTransport().Ingest(cmd.Context(), dev, recs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended: %d\n", n)
			return nil
		},
	}
	cmd.Flags().String("device", "", "Device the records belong to (default: server default device)")
	cmd.Flags().String("file", "", "JSON file with a record, an array, or a {device, records} envelope; - for stdin")
	cmd.Flags().String("domain", "", "Domain of a single record")
	cmd.Flags().String("source-ip", "", "Source IP of a single record")
	cmd.Flags().Int("port", 0, "Destination port of a single record")
	cmd.Flags().String("action", "", "Filter action: blocked|allowed")
	cmd.Flags().String("at", "", "Record time (RFC3339 or epoch ms); default now")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func recordFromFlags(cmd *cobra.Command) (logstore.Record, error) {
	domain, _ := cmd.Flags().GetString("domain")
	if domain == "" {
		return logstore.Record{}, errors.New("either --file or --domain is required")
	}
	srcIP, _ := cmd.Flags().GetString("source-ip")
	port, _ := cmd.Flags().GetInt("port")
	action, _ := cmd.Flags().GetString("action")
	at, _ := cmd.Flags().GetString("at")
	r := logstore.Record{Domain: domain, SourceIP: srcIP, Port: port, Action: action}
	if at != "" {
		if ms, err := strconv.ParseInt(at, 10, 64); err == nil {
			r.Timestamp = time.UnixMilli(ms)
		} else if t, err := time.Parse(time.RFC3339, at); err == nil {
			r.Timestamp = t
		} else {
			return logstore.Record{}, fmt.Errorf("invalid --at; expected ms or RFC3339")
		}
	}
	return r, nil
}

// viewFlags are shared by page and browse.
func addViewFlags(cmd *cobra.Command) {
	cmd.Flags().String("device", "", "Only records from this device")
	cmd.Flags().String("filter", "", "CEL filter expression, e.g. action == \"blocked\"")
	cmd.Flags().Int("page-size", pager.DefaultPageSize, "Records per page: 10|20|30|40|50")
	cmd.Flags().String("backward", "reset", "Earlier-page behavior: reset|seek")
	cmd.Flags().Bool("utc", false, "Render timestamps in UTC instead of local time")
}

func newController(cmd *cobra.Command) (*pager.Controller, *time.Location, error) {
	dev, _ := cmd.Flags().GetString("device")
	filter, _ := cmd.Flags().GetString("filter")
	size, _ := cmd.Flags().GetInt("page-size")
	backward, _ := cmd.Flags().GetString("backward")
	utc, _ := cmd.Flags().GetBool("utc")

	policy := pager.BackwardReset
	switch backward {
	case "reset":
	case "seek":
		policy = pager.BackwardSeek
	default:
		return nil, nil, fmt.Errorf("invalid --backward; use reset|seek")
	}
	sc := transports.Scanner{Transport: getTransport(), Device: dev, Filter: filter}
	ctrl, err := pager.NewController(sc, size, pager.WithBackwardPolicy(policy))
	if err != nil {
		return nil, nil, fmt.Errorf("--page-size: %w", err)
	}
	loc := time.Local
	if utc {
		loc = time.UTC
	}
	return ctrl, loc, nil
}

func newLogsPageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Print one page of logs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, _ := cmd.Flags().GetInt("page")
			if page < 1 {
				return fmt.Errorf("--page must be >= 1")
			}
			ctrl, loc, err := newController(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			snap, err := ctrl.FetchFirstPage(ctx)
			// Walk forward one window at a time; the pager only knows the
			// cursor of the page it is on.
			for err == nil && snap.Page < page && snap.HasNext {
				snap, err = ctrl.Next(ctx)
			}
			renderPage(cmd.OutOrStdout(), ctrl.Snapshot(), loc)
			if err != nil {
				return err
			}
			if snap.Page < page {
				fmt.Fprintf(cmd.OutOrStdout(), "only %d page(s) available\n", snap.Page)
			}
			return nil
		},
	}
	addViewFlags(cmd)
	cmd.Flags().Int("page", 1, "Page number to print")
	return cmd
}

const browseHelp = "commands: n(ext) | p(rev) | g(oto) N | s(ize) N | f(irst) | r(etry) | q(uit)"

func newLogsBrowseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through logs interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, loc, err := newController(cmd)
			if err != nil {
				return err
			}
			return browse(cmd.Context(), ctrl, cmd.InOrStdin(), cmd.OutOrStdout(), loc)
		},
	}
	addViewFlags(cmd)
	return cmd
}

// browse runs the interactive loop until q or end of input. Fetch errors are
// shown and leave the view where it was.
func browse(ctx context.Context, ctrl *pager.Controller, in io.Reader, out io.Writer, loc *time.Location) error {
	_, _ = ctrl.FetchFirstPage(ctx)
	renderPage(out, ctrl.Snapshot(), loc)
	fmt.Fprintln(out, browseHelp)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		arg := func() (int, error) {
			if len(fields) < 2 {
				return 0, fmt.Errorf("%s needs a number", fields[0])
			}
			return strconv.Atoi(fields[1])
		}
		var err error
		switch fields[0] {
		case "q", "quit", "exit":
			return nil
		case "n", "next":
			_, err = ctrl.Next(ctx)
		case "p", "prev", "previous":
			_, err = ctrl.Previous(ctx)
		case "f", "first":
			_, err = ctrl.FetchFirstPage(ctx)
		case "r", "retry":
			_, err = ctrl.GoToPage(ctx, ctrl.Snapshot().Page)
		case "g", "goto":
			var n int
			if n, err = arg(); err == nil {
				_, err = ctrl.GoToPage(ctx, n)
			}
		case "s", "size":
			var n int
			if n, err = arg(); err == nil {
				_, err = ctrl.SetPageSize(ctx, n)
			}
		default:
			fmt.Fprintln(out, browseHelp)
			continue
		}
		if err != nil && ctrl.Snapshot().Status != pager.StatusFailed {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		renderPage(out, ctrl.Snapshot(), loc)
	}
}
