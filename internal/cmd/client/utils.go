package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/rzbill/filterlog/internal/cmd/client/transports"
	"github.com/rzbill/filterlog/internal/pager"
)

// grpcAddrFromEnv returns the gRPC server address from FILTERLOG_GRPC or a
// default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("FILTERLOG_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext dials the filterlog gRPC endpoint with insecure transport
// for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// getTransport is swapped in tests.
var getTransport = func() transports.LogsTransport {
	return transports.NewGrpcTransport(dialGRPCContext)
}

// renderPage prints the table, summary, and navigation hints for snap.
func renderPage(w io.Writer, snap pager.Snapshot, loc *time.Location) {
	if snap.Status == pager.StatusFailed {
		fmt.Fprintf(w, "error: %v\n", snap.Err)
		fmt.Fprintf(w, "page %d (size %d); retry with the same page\n", snap.Page, snap.PageSize)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tDOMAIN\tSOURCE IP")
	for _, r := range snap.Records {
		row := pager.FormatRow(r, loc)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Timestamp, row.Domain, row.SourceIP)
	}
	_ = tw.Flush()
	fmt.Fprintln(w, snap.Summary())
	fmt.Fprintf(w, "page %d  size %d  previous:%s  next:%s\n", snap.Page, snap.PageSize, onOff(snap.HasPrevious), onOff(snap.HasNext))
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
