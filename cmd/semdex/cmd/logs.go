package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/logging"
)

// logsOptions holds CLI flags for logs.
type logsOptions struct {
	file     string
	lines    int
	follow   bool
	pathOnly bool
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the semdex log file",
		Long: `Print the JSON log file written with --debug or by 'semdex serve'.

Lines are raw JSON; pipe through jq for filtering:
  semdex logs | jq 'select(.level == "ERROR")'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Log file to read (default: the standard location)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of trailing lines to print (0 for all)")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep printing as new lines arrive")
	cmd.Flags().BoolVar(&opts.pathOnly, "path", false, "Print only the log file path")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.file)
	if err != nil {
		return err
	}

	if opts.pathOnly {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	}

	offset, err := printTail(cmd.OutOrStdout(), path, opts.lines)
	if err != nil {
		return err
	}
	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return followLog(ctx, cmd.OutOrStdout(), path, offset)
}

// printTail writes the last n lines of the file and returns the offset
// where following should resume.
func printTail(w io.Writer, path string, n int) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	content := string(data)
	if n > 0 {
		lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
		if len(lines) > n {
			lines = lines[len(lines)-n:]
		}
		content = strings.Join(lines, "\n")
		if content != "" {
			content += "\n"
		}
	}

	_, err = io.WriteString(w, content)
	return int64(len(data)), err
}

// followLog polls the file for growth. Rotation truncates the file, so
// a shrink restarts from the top.
func followLog(ctx context.Context, w io.Writer, path string, offset int64) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			size := info.Size()
			if size < offset {
				offset = 0 // rotated
			}
			if size == offset {
				continue
			}

			f, err := os.Open(path)
			if err != nil {
				continue
			}
			if _, err := f.Seek(offset, io.SeekStart); err == nil {
				n, _ := io.Copy(w, f)
				offset += n
			}
			_ = f.Close()
		}
	}
}
