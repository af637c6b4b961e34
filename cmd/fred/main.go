// fred is an operator tool for a retrieval client's scratch space and
// fetch settings.
//
//	fred sweep  --dir D --prefix P        remove stale temp files
//	fred names  --dir D --prefix P -n N   print N unused temp filenames
//	fred derive --settings F --mask M     show the limits a mask produces
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/5nafu/fred/fetch"
	"github.com/5nafu/fred/random"
	"github.com/5nafu/fred/tempfile"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}
	switch args[0] {
	case "sweep":
		return runSweep(args[1:], stdout, stderr)
	case "names":
		return runNames(args[1:], stdout, stderr)
	case "derive":
		return runDerive(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: fred <sweep|names|derive> [flags]")
}

type tempFlags struct {
	dir     string
	prefix  string
	maxIO   int
	verbose bool
}

func (f *tempFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&f.dir, "dir", "", "temp directory (default: platform temp dir)")
	fs.StringVar(&f.prefix, "prefix", "fred-tmp-", "temp filename prefix")
	fs.IntVar(&f.maxIO, "max-io", 4, "maximum concurrent filesystem calls")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log debug output")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func runSweep(args []string, stdout, stderr io.Writer) error {
	var tf tempFlags
	fs := pflag.NewFlagSet("fred sweep", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	tf.add(fs)
	var workers int
	fs.IntVar(&workers, "workers", 4, "parallel deletions")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	logger := newLogger(stderr, tf.verbose)
	g, err := tempfile.New(random.Crypto(),
		tempfile.WithDir(tf.dir),
		tempfile.WithPrefix(tf.prefix),
		tempfile.WithMaxConcurrentIO(tf.maxIO),
		tempfile.WithSweepWorkers(workers),
		tempfile.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	stats, err := g.Sweep(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "dir\t%s\n", g.Dir())
	fmt.Fprintf(tw, "examined\t%d\n", stats.Examined)
	fmt.Fprintf(tw, "matched\t%d\n", stats.Matched)
	fmt.Fprintf(tw, "live\t%d\n", stats.Live)
	fmt.Fprintf(tw, "deleted\t%d\n", stats.Deleted)
	fmt.Fprintf(tw, "failed\t%d\n", stats.Failed)
	fmt.Fprintf(tw, "elapsed\t%s\n", stats.Elapsed)
	if err := tw.Flush(); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d temp files could not be deleted", stats.Failed)
	}
	return nil
}

func runNames(args []string, stdout, stderr io.Writer) error {
	var tf tempFlags
	fs := pflag.NewFlagSet("fred names", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	tf.add(fs)
	var count int
	fs.IntVarP(&count, "count", "n", 1, "number of names to print")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if count < 0 {
		return fmt.Errorf("count must be >= 0, got %d", count)
	}

	g, err := tempfile.New(random.Crypto(),
		tempfile.WithDir(tf.dir),
		tempfile.WithPrefix(tf.prefix),
		tempfile.WithMaxConcurrentIO(tf.maxIO),
		tempfile.WithLogger(newLogger(stderr, tf.verbose)),
	)
	if err != nil {
		return err
	}
	for range count {
		name, err := g.MakeRandomFilename()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, name)
	}
	return nil
}

func runDerive(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("fred derive", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var settingsPath string
	var masks []string
	fs.StringVar(&settingsPath, "settings", "", "YAML settings file (default: built-in defaults)")
	fs.StringSliceVar(&masks, "mask", nil, "mask to apply; repeat to chain")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	settings := fetch.DefaultSettings()
	if settingsPath != "" {
		var err error
		settings, err = fetch.LoadSettings(settingsPath)
		if err != nil {
			return err
		}
	}

	cfg, err := fetch.New(settings.Limits())
	if err != nil {
		return err
	}
	chain := "root"
	for _, name := range masks {
		mask, err := fetch.ParseMask(name)
		if err != nil {
			return err
		}
		cfg, err = cfg.Derive(mask)
		if err != nil {
			return err
		}
		chain += " > " + mask.String()
	}

	fmt.Fprintln(stdout, chain)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, attr := range cfg.LogValue().Group() {
		if attr.Key == "cancelled" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", attr.Key, attr.Value)
	}
	return tw.Flush()
}
