// Package main provides stackc, the command line driver of the stackscript
// compiler. It compiles scripts to the flattened statement form, prints the
// intermediate trees of each stage and offers watch and REPL modes.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/orizon-lang/stackscript/internal/cli"
)

const toolName = "stackc"

// errUsage marks command line mistakes; the message was already printed.
var errUsage = errors.New("usage error")

var commands = []cli.CommandInfo{
	{
		Name:        "compile",
		Usage:       "stackc compile [OPTIONS] FILE...",
		Description: "Compile scripts to flattened statements",
		Flags: append(commonFlags(),
			cli.FlagInfo{Name: "o", Usage: "write the program to this file instead of stdout"},
			cli.FlagInfo{Name: "vars", Usage: "print the variable table after the program", Default: "false"},
		),
		Examples: []string{"stackc compile -vars shader.ss", "stackc compile -concurrent -workers 4 a.ss b.ss"},
	},
	{
		Name:        "tokens",
		Usage:       "stackc tokens FILE",
		Description: "Print the token stream and pragmas of a script",
	},
	{
		Name:        "ast",
		Usage:       "stackc ast [OPTIONS] FILE",
		Description: "Print the tree after a compiler stage",
		Flags: append(commonFlags(),
			cli.FlagInfo{Name: "stage", Usage: "parse|analyze|transform|flatten|cleanup", Default: "cleanup"},
			cli.FlagInfo{Name: "dump", Usage: "print the node tree instead of source form", Default: "false"},
		),
		Examples: []string{"stackc ast -stage parse -dump shader.ss"},
	},
	{
		Name:        "watch",
		Usage:       "stackc watch [OPTIONS] FILE...",
		Description: "Recompile scripts whenever they change",
		Flags:       commonFlags(),
	},
	{
		Name:        "repl",
		Usage:       "stackc repl [OPTIONS]",
		Description: "Compile statements interactively",
		Flags:       commonFlags(),
	},
	{
		Name:        "version",
		Usage:       "stackc version [-json]",
		Description: "Show version information",
	},
}

func main() {
	if len(os.Args) < 2 {
		cli.PrintUsage(os.Stderr, toolName, commands)
		os.Exit(1)
	}

	err := run(os.Args[1], os.Args[2:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(sub string, args []string, stdout, stderr io.Writer) error {
	switch sub {
	case "help", "-h", "--help":
		if len(args) > 0 {
			if cmd, ok := cli.FindCommand(commands, args[0]); ok {
				cli.PrintCommandUsage(stdout, toolName, cmd)
				return nil
			}
		}
		cli.PrintUsage(stdout, toolName, commands)
		return nil
	case "version", "-v", "--version":
		fs := flag.NewFlagSet("version", flag.ContinueOnError)
		fs.SetOutput(stderr)
		jsonOutput := fs.Bool("json", false, "print version information as JSON")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return cli.PrintVersion(stdout, toolName, *jsonOutput)
	case "compile":
		return runCompile(args, stdout, stderr)
	case "tokens":
		return runTokens(args, stdout, stderr)
	case "ast":
		return runAST(args, stdout, stderr)
	case "watch":
		return runWatch(args, stdout, stderr)
	case "repl":
		return runREPL(args, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown subcommand: %s\n", sub)
		cli.PrintUsage(stderr, toolName, commands)
		return errUsage
	}
}

// usageError prints the usage of the named command and returns errUsage.
func usageError(stderr io.Writer, name string) error {
	if cmd, ok := cli.FindCommand(commands, name); ok {
		cli.PrintCommandUsage(stderr, toolName, cmd)
	}
	return errUsage
}
