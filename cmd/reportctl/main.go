package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/report-interpreter/internal/client"
	"github.com/bryanwahyu/report-interpreter/internal/logging"
	"github.com/bryanwahyu/report-interpreter/internal/render"
)

const defaultServer = "http://localhost:5000"

type options struct {
	serverURL string
	verbose   bool
	timeout   time.Duration
	textFile  string

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "reportctl",
		Short:         "Send medical reports to the analysis gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flag("server"); f == nil || !f.Changed {
				if v := os.Getenv("REPORT_SERVER"); v != "" {
					opts.serverURL = v
				}
			}

			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			var err error
			opts.logger, err = logging.New(level, "console")
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	// textCmd relays pasted report text and prints the model's answer
	textCmd := &cobra.Command{
		Use:   "text [TEXT]",
		Short: "Analyze report text (argument, --file, or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args, opts.textFile)
			if err != nil {
				return err
			}
			c := opts.client()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			stop := indicate(cmd.ErrOrStderr())
			res, err := c.AnalyzeText(ctx, text)
			stop()
			if err != nil {
				return err
			}
			return render.Text(cmd.OutOrStdout(), res.Analysis)
		},
	}
	textCmd.Flags().StringVarP(&opts.textFile, "file", "f", "", "Read report text from a file")

	// imageCmd uploads a report photo or scan for structured analysis
	imageCmd := &cobra.Command{
		Use:   "image PATH",
		Short: "Analyze a report image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			c := opts.client()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			stop := indicate(cmd.ErrOrStderr())
			res, err := c.AnalyzeImage(ctx, filepath.Base(args[0]), data)
			stop()
			if err != nil {
				return err
			}
			return render.Report(cmd.OutOrStdout(), res)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", defaultServer, "Gateway base URL (or set REPORT_SERVER env)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Request timeout (0 waits for the gateway)")

	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(imageCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *options) client() *client.Client {
	o.logger.Debug("using gateway", zap.String("server", o.serverURL))
	return client.New(o.serverURL, &http.Client{})
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

func readText(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("pass report text as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read report file: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

// indicate shows a busy line until the returned func is called.
func indicate(w io.Writer) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		frames := []string{"|", "/", "-", "\\"}
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(w, "\r%s Analyzing...", frames[i%len(frames)])
			select {
			case <-done:
				fmt.Fprint(w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
