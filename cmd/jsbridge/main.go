package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/jsbridge"
	"github.com/wippyai/jsbridge/bridge"
	"github.com/wippyai/jsbridge/config"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/value"
)

func main() {
	var (
		expr        = flag.String("e", "", "Evaluate the given source")
		file        = flag.String("f", "", "Evaluate the given file")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Development logging and full guest stack traces")
		logFile     = flag.String("log", "", "Write logs to this file instead of stderr")
	)
	flag.Parse()

	if *expr != "" && *file != "" {
		fmt.Fprintln(os.Stderr, "Usage: jsbridge [-e source | -f file.js] [-v] [-log path]")
		fmt.Fprintln(os.Stderr, "       jsbridge -i  (interactive mode)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repl := *interactive || (*expr == "" && *file == "" && flag.NArg() == 0 && term.IsTerminal(int(os.Stdin.Fd())))
	if err := run(ctx, options{
		expr:        *expr,
		file:        firstNonEmpty(*file, flag.Arg(0)),
		interactive: repl,
		verbose:     *verbose,
		logFile:     *logFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	expr        string
	file        string
	logFile     string
	interactive bool
	verbose     bool
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, opts)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	tp, shutdown, err := setupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	var src string
	bcfg := cfg.Bridge()
	if !opts.interactive {
		var name string
		if src, name, err = readSource(opts); err != nil {
			return err
		}
		if name != "" {
			bcfg.SourceName = name
		}
	}

	out := &console{w: os.Stdout}
	bcfg.OnError = func(err error) { out.println(formatError(err, opts.verbose)) }

	bopts := []bridge.Option{
		bridge.WithConfig(bcfg),
		bridge.WithLogger(log),
		bridge.WithTracerProvider(tp),
		bridge.WithGlobal("print", out.print),
	}

	if opts.interactive {
		b, err := bridge.New(bopts...)
		if err != nil {
			return err
		}
		defer b.Close()
		return runInteractive(ctx, b, out, opts.verbose)
	}

	res, err := jsbridge.Run(ctx, src, bopts...)
	if err != nil {
		return stderrors.New(formatError(err, opts.verbose))
	}
	if res != nil {
		out.println(value.Format(res))
	}
	return nil
}

func readSource(opts options) (src, name string, err error) {
	switch {
	case opts.expr != "":
		return opts.expr, "", nil
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", "", fmt.Errorf("read file: %w", err)
		}
		return string(data), opts.file, nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "", nil
	}
}

func newLogger(level zapcore.Level, opts options) (*zap.Logger, error) {
	if opts.interactive && opts.logFile == "" {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewProductionConfig()
	if opts.verbose {
		zcfg = zap.NewDevelopmentConfig()
		level = min(level, zapcore.DebugLevel)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if opts.logFile != "" {
		zcfg.OutputPaths = []string{opts.logFile}
		zcfg.ErrorOutputPaths = []string{opts.logFile}
	}
	return zcfg.Build()
}

// formatError renders a failure for the terminal. Guest errors show their
// stack when verbose.
func formatError(err error, verbose bool) string {
	var gerr *errors.GuestError
	if verbose && errors.As(err, &gerr) && gerr.Stack != "" {
		return gerr.Stack
	}
	return err.Error()
}

// console is the sink behind the guest print function.
type console struct {
	w    io.Writer
	sink func(string)
	mu   sync.Mutex
}

func (c *console) print(args ...any) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = value.Format(a)
	}
	c.println(strings.Join(parts, " "))
	return nil, nil
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink != nil {
		c.sink(s)
		return
	}
	fmt.Fprintln(c.w, s)
}

// redirect sends output to fn instead of the writer.
func (c *console) redirect(fn func(string)) {
	c.mu.Lock()
	c.sink = fn
	c.mu.Unlock()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
