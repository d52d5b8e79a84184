package shell

import (
	"fmt"
	"strings"
)

// CommandInfo holds metadata about a shell command.
type CommandInfo struct {
	Name        string   // Primary command name
	Aliases     []string // Alternative names
	Description string   // Short description
	Usage       string   // Example usage
}

// CommandRegistry lists every shell command. Anything else typed at the
// prompt is treated as a statement.
var CommandRegistry = []CommandInfo{
	{
		Name:        "compile",
		Description: "Run the engine on the session cache",
		Usage:       "compile",
	},
	{
		Name:        "load",
		Description: "Add source files to the include area and recompile",
		Usage:       "load <file> [file...]",
	},
	{
		Name:        "facts",
		Description: "Copy the .facts files of a directory into the facts area",
		Usage:       "facts <dir>",
	},
	{
		Name:        "rules",
		Description: "List relations available as facts or outputs",
		Usage:       "rules",
	},
	{
		Name:        "history",
		Description: "Show the statements of this session",
		Usage:       "history",
	},
	{
		Name:        "export",
		Aliases:     []string{"exportdl"},
		Description: "Copy the session cache file to a path",
		Usage:       "export <path>",
	},
	{
		Name:        "save",
		Description: "Copy the computed outputs to a directory",
		Usage:       "save <dir>",
	},
	{
		Name:        "cleancache",
		Aliases:     []string{"reset"},
		Description: "Drop session statements and computed outputs",
		Usage:       "cleancache",
	},
	{
		Name:        "edit",
		Aliases:     []string{"emacs"},
		Description: "Edit the session cache in $EDITOR, then reload it",
		Usage:       "edit",
	},
	{
		Name:        "replay",
		Description: "Re-submit the accepted statements of an earlier session",
		Usage:       "replay <token>",
	},
	{
		Name:        "help",
		Aliases:     []string{"?"},
		Description: "Show this reference",
		Usage:       "help",
	},
	{
		Name:        "quit",
		Aliases:     []string{"exit"},
		Description: "Leave the session",
		Usage:       "quit",
	},
}

// FindCommand looks up a command by name or alias.
func FindCommand(name string) *CommandInfo {
	name = strings.ToLower(name)
	for i := range CommandRegistry {
		cmd := &CommandRegistry[i]
		if cmd.Name == name {
			return cmd
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd
			}
		}
	}
	return nil
}

// HelpMarkdown renders the command reference as markdown.
func HelpMarkdown() string {
	var sb strings.Builder
	sb.WriteString("## Statements\n\n")
	sb.WriteString("Type one Soufflé statement per line: `.decl`, `.type`, `.input`, `.output`, ")
	sb.WriteString("or a rule ending in `.` such as `path(x, y) :- edge(x, y).`\n")
	sb.WriteString("`.output NAME` evaluates the relation and prints it.\n\n")
	sb.WriteString("## Commands\n\n")
	sb.WriteString("| Command | Description |\n")
	sb.WriteString("|---------|-------------|\n")
	for _, cmd := range CommandRegistry {
		usage := cmd.Usage
		if len(cmd.Aliases) > 0 {
			usage += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		sb.WriteString(fmt.Sprintf("| `%s` | %s |\n", usage, cmd.Description))
	}
	return sb.String()
}
