// jsonshrink rewrites JSON with every number in its shortest form.
//
// Usage:
//
//	jsonshrink [--remove-null] [--precision=N] [--verify] [--stats] [file]
//
// If no file is given, or the file is "-", reads from stdin.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/veqryn/jsonshrink"
)

// shrinkCommand holds the parsed command line.
type shrinkCommand struct {
	file       string
	removeNull bool
	precision  int
	verify     bool
	stats      bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(cmd *shrinkCommand) *kingpin.Application {
	app := kingpin.New("jsonshrink", "Rewrite JSON with every number in its shortest form.")
	app.Flag("remove-null", "Drop object members whose value is null.").BoolVar(&cmd.removeNull)
	app.Flag("precision", "Round numbers to this many fractional digits (-1 disables rounding).").Default("-1").IntVar(&cmd.precision)
	app.Flag("verify", "Fall back to the standard encoding if the shrunk output does not decode to the same value.").BoolVar(&cmd.verify)
	app.Flag("stats", "Print the input and output sizes to stderr.").BoolVar(&cmd.stats)
	app.Arg("file", "The JSON file to shrink.").Default("-").StringVar(&cmd.file)
	app.Action(cmd.run)
	return app
}

func (cmd *shrinkCommand) run(_ *kingpin.ParseContext) error {
	in, err := cmd.read()
	if err != nil {
		return err
	}

	opts := &jsonshrink.Options{RemoveNull: cmd.removeNull}
	if cmd.precision >= 0 {
		opts.Precision = jsonshrink.Digits(cmd.precision)
	}

	shrink := jsonshrink.ShrinkJSON
	if cmd.verify {
		shrink = jsonshrink.VerifiedShrinkJSON
	}
	out, err := shrink(in, opts)
	if err != nil {
		return fmt.Errorf("failed to shrink %s: %w", cmd.file, err)
	}
	if _, err := fmt.Fprintln(cmd.stdout, out); err != nil {
		return err
	}

	if cmd.stats {
		cmd.printStats(len(in), len(out))
	}
	return nil
}

func (cmd *shrinkCommand) read() ([]byte, error) {
	if cmd.file == "-" {
		return io.ReadAll(cmd.stdin)
	}
	b, err := os.ReadFile(cmd.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return b, nil
}

func (cmd *shrinkCommand) printStats(in, out int) {
	bold := color.New(color.Bold)
	bold.Fprintln(cmd.stderr, "Sizes:")
	saved := 0.0
	if in > 0 {
		saved = 100 * float64(in-out) / float64(in)
	}
	fmt.Fprintf(cmd.stderr, "\tinput: %v, output: %v, saved: %.1f%%\n",
		humanize.Bytes(uint64(in)), humanize.Bytes(uint64(out)), saved)
}

func main() {
	cmd := &shrinkCommand{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	app := newApp(cmd)
	if _, err := app.Parse(os.Args[1:]); err != nil {
		exitWithErr(err)
	}
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "jsonshrink: %v\n", err)
	os.Exit(1)
}
