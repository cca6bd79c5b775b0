// Command regaudit runs static analyses over a PCRE pattern: semantic
// validation, linting, optimization and ReDoS profiling.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/0x4d5352/regaudit/internal/analysis"
	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/parser"
	"github.com/0x4d5352/regaudit/internal/report"
	"github.com/0x4d5352/regaudit/internal/unescape"
)

var version = "0.1.0"

func main() {
	var stdin io.Reader
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		stdin = os.Stdin
	}
	if err := run(os.Args, stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("regaudit", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	analyses := fs.StringSlice("analysis", analysis.List(),
		"Analyses to run ("+strings.Join(analysis.List(), ", ")+")")
	bare := fs.Bool("bare", false, "Treat the input as an undelimited pattern")
	bareFlags := fs.String("flags", "", "Modifier flags for --bare patterns")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	unescapeInput := fs.Bool("unescape", false, "Undo string-literal escaping before parsing")
	verbose := fs.BoolP("verbose", "v", false, "Verbose logging")
	showVersion := fs.Bool("version", false, "Show version")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "regaudit - static analysis for PCRE patterns\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  regaudit [flags] '/pattern/modifiers'\n")
		fmt.Fprintf(stderr, "  echo '/pattern/' | regaudit [flags]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nAvailable analyses:\n")
		for _, name := range analysis.List() {
			a, _ := analysis.Get(name)
			fmt.Fprintf(stderr, "  %-10s %s\n", name, a.Description())
		}
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  regaudit '/(a+)+$/'\n")
		fmt.Fprintf(stderr, "  regaudit --analysis lint,optimize '/[0-9]|[a-z]/'\n")
		fmt.Fprintf(stderr, "  regaudit --bare --flags im 'ab+c'\n")
	}

	if err := fs.Parse(args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	log := logrus.New()
	log.SetOutput(stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *showVersion {
		fmt.Fprintf(stdout, "regaudit version %s\n", version)
		return nil
	}

	source, err := getInput(fs.Args(), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return err
	}

	if unescape.ContainsDoubleEscapes(source) {
		if *unescapeInput {
			source = unescape.StringLiteral(source)
			log.Debugf("unescaped input to %s", source)
		} else {
			log.Warn("the pattern contains double backslashes; use --unescape if it was copied from a string literal")
		}
	}

	re, err := parsePattern(source, *bare, *bareFlags)
	if err != nil {
		displayParseError(stderr, source, err)
		return fmt.Errorf("parse error: %w", err)
	}
	log.Debugf("parsed pattern with flags %q", re.Flags)

	color := !*noColor
	if f, ok := stdout.(*os.File); ok {
		color = color && isatty.IsTerminal(f.Fd())
	}
	renderer := report.NewRenderer(stdout, color)

	for _, name := range *analyses {
		a, ok := analysis.Get(name)
		if !ok {
			err := analysis.ErrUnknownAnalysis.New(name)
			fmt.Fprintf(stderr, "Error: %v\nAvailable analyses: %s\n", err, strings.Join(analysis.List(), ", "))
			return err
		}
		section, err := a.Run(re, source)
		if err != nil {
			return fmt.Errorf("running %s: %w", name, err)
		}
		renderer.Render(source, section)
	}
	return nil
}

func parsePattern(source string, bare bool, bareFlags string) (*ast.Regex, error) {
	if bare {
		return parser.ParsePattern(source, bareFlags)
	}
	return parser.Parse(source)
}

// getInput retrieves the pattern from CLI args or stdin.
func getInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if stdin != nil {
		input, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return strings.TrimSpace(string(input)), nil
	}
	return "", fmt.Errorf("no pattern provided")
}

// displayParseError shows a parse error with a position indicator.
func displayParseError(w io.Writer, source string, err error) {
	fmt.Fprintf(w, "Error parsing pattern:\n\n")
	fmt.Fprintf(w, "  %s\n", source)
	if perr, ok := err.(*parser.Error); ok && perr.Pos >= 0 && perr.Pos <= len(source) {
		fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", perr.Pos))
		fmt.Fprintf(w, "\n%s\n", perr.Message)
		return
	}
	fmt.Fprintf(w, "\n%s\n", err)
}
