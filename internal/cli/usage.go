package cli

import (
	"fmt"
	"io"
)

// CommandInfo represents information about a CLI command
type CommandInfo struct {
	Name        string
	Usage       string
	Description string
	Examples    []string
	Flags       []FlagInfo
}

// FlagInfo represents information about a command flag
type FlagInfo struct {
	Name    string
	Usage   string
	Default string
}

// PrintUsage prints a standardized usage message
func PrintUsage(w io.Writer, tool string, commands []CommandInfo) {
	fmt.Fprintf(w, "%s - stackscript tools\n\n", tool)
	fmt.Fprintf(w, "USAGE:\n")
	fmt.Fprintf(w, "    %s <command> [OPTIONS]\n\n", tool)

	if len(commands) > 0 {
		fmt.Fprintf(w, "COMMANDS:\n")
		for _, cmd := range commands {
			fmt.Fprintf(w, "    %-12s %s\n", cmd.Name, cmd.Description)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "Use '%s help <command>' for more information about a command.\n", tool)
}

// PrintCommandUsage prints usage for a specific command
func PrintCommandUsage(w io.Writer, tool string, cmd CommandInfo) {
	fmt.Fprintf(w, "%s %s - %s\n\n", tool, cmd.Name, cmd.Description)
	fmt.Fprintf(w, "USAGE:\n")
	fmt.Fprintf(w, "    %s\n\n", cmd.Usage)

	if len(cmd.Flags) > 0 {
		fmt.Fprintf(w, "OPTIONS:\n")
		for _, flag := range cmd.Flags {
			fmt.Fprintf(w, "%-20s %s\n", "    -"+flag.Name, flag.Usage)
			if flag.Default != "" {
				fmt.Fprintf(w, "%-20s Default: %s\n", "", flag.Default)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if len(cmd.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, example := range cmd.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
		fmt.Fprintf(w, "\n")
	}
}

// FindCommand returns the command called name.
func FindCommand(commands []CommandInfo, name string) (CommandInfo, bool) {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return CommandInfo{}, false
}
