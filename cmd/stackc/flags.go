package main

import (
	"flag"
	"io"

	"github.com/orizon-lang/stackscript/internal/cli"
)

// settings holds the flags shared by every compiling subcommand.
type settings struct {
	configPath  string
	verbose     bool
	debug       bool
	concurrent  bool
	workers     int
	maxAnalysis int
	maxFlatten  int
	errorLimit  int
	target      string
}

func commonFlags() []cli.FlagInfo {
	return []cli.FlagInfo{
		{Name: "config", Usage: "JSON configuration file"},
		{Name: "verbose", Usage: "log todo notes and progress", Default: "false"},
		{Name: "debug", Usage: "log stage traces", Default: "false"},
		{Name: "concurrent", Usage: "parse statements on several goroutines", Default: "false"},
		{Name: "workers", Usage: "parser goroutines", Default: "GOMAXPROCS"},
		{Name: "target", Usage: "interpreter version the script must run on"},
		{Name: "max-analysis", Usage: "analysis fixpoint bound per statement", Default: "5"},
		{Name: "max-flatten", Usage: "flatten convergence bound", Default: "10"},
		{Name: "error-limit", Usage: "number of errors kept per script", Default: "100"},
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *settings) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	s := &settings{}
	fs.StringVar(&s.configPath, "config", "", "JSON configuration file")
	fs.BoolVar(&s.verbose, "verbose", false, "log todo notes and progress")
	fs.BoolVar(&s.debug, "debug", false, "log stage traces")
	fs.BoolVar(&s.concurrent, "concurrent", false, "parse statements on several goroutines")
	fs.IntVar(&s.workers, "workers", 0, "parser goroutines")
	fs.StringVar(&s.target, "target", "", "interpreter version the script must run on")
	fs.IntVar(&s.maxAnalysis, "max-analysis", 0, "analysis fixpoint bound per statement")
	fs.IntVar(&s.maxFlatten, "max-flatten", 0, "flatten convergence bound")
	fs.IntVar(&s.errorLimit, "error-limit", 0, "number of errors kept per script")

	return fs, s
}

// resolve loads the config file; flags given on the command line override
// its values.
func (s *settings) resolve(fs *flag.FlagSet) (*cli.Config, error) {
	cfg, err := cli.LoadConfig(s.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbose":
			cfg.Verbose = s.verbose
		case "debug":
			cfg.Debug = s.debug
		case "concurrent":
			cfg.ConcurrentParse = s.concurrent
		case "workers":
			cfg.Workers = s.workers
		case "target":
			cfg.TargetVersion = s.target
		case "max-analysis":
			cfg.MaxAnalysisIterations = s.maxAnalysis
		case "max-flatten":
			cfg.MaxFlattenIterations = s.maxFlatten
		case "error-limit":
			cfg.ErrorLimit = s.errorLimit
		}
	})

	return cfg, nil
}

func newLogger(cfg *cli.Config, w io.Writer) *cli.Logger {
	return cli.NewLoggerTo(w, cfg.Verbose, cfg.Debug)
}
