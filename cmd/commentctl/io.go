package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/blog-comment-widget/internal/legacy"
)

// logWriter sends logs to COMMENTCTL_LOG_FILE when set, otherwise stderr.
func logWriter() io.Writer {
	if path := os.Getenv("COMMENTCTL_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			return f
		}
	}
	return os.Stderr
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

func printImportResult(w io.Writer, r *legacy.Result) {
	fmt.Fprintf(w, "imported %d of %d records (%d failed, %d already present) in %s\n",
		r.Imported, r.Total, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
	if len(r.Errors) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tFIELD\tMESSAGE")
	for _, e := range r.Errors {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Line, e.Field, e.Message)
	}
	tw.Flush() //nolint:errcheck
}
