package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	List      *ListCommand
	Search    *SearchCommand
	Show      *ShowCommand
	Occasions *OccasionsCommand
	Poll      *PollCommand
	Serve     *ServeCommand
	Status    *StatusCommand
	Add       *AddCommand
	Prune     *PruneCommand
	Purge     *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "auditlog"
	parser.LongDescription = "Query, page, and serve an append-only audit event log."

	cmds := &commands{
		List:      &ListCommand{globals: &globals, version: version},
		Search:    &SearchCommand{globals: &globals, version: version},
		Show:      &ShowCommand{globals: &globals, version: version},
		Occasions: &OccasionsCommand{globals: &globals, version: version},
		Poll:      &PollCommand{globals: &globals, version: version},
		Serve:     &ServeCommand{globals: &globals, version: version},
		Status:    &StatusCommand{globals: &globals, version: version},
		Add:       &AddCommand{globals: &globals, version: version},
		Prune:     &PruneCommand{globals: &globals, version: version},
		Purge:     &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("list", "List events", "List events newest first, with repeated events collapsed into one row.", cmds.List)
	parser.AddCommand("search", "Search events", "Search events by keyword, with optional filters.", cmds.Search)
	parser.AddCommand("show", "Print a single event", "Print the full details of a specific event.", cmds.Show)
	parser.AddCommand("occasions", "Expand a collapsed row", "List the individual events folded into a collapsed row.", cmds.Occasions)
	parser.AddCommand("poll", "Follow new events", "Print events as they are added, oldest first.", cmds.Poll)
	parser.AddCommand("serve", "Start the query API", "Start the local HTTP query API and the retention loop.", cmds.Serve)
	parser.AddCommand("status", "Show log statistics", "Show database statistics, server health, and configuration summary.", cmds.Status)
	parser.AddCommand("add", "Append an event", "Append an event to the log by hand.", cmds.Add)
	parser.AddCommand("prune", "Apply retention pruning", "Apply retention pruning to remove old events.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL events", "Delete ALL events. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the auditlog CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("auditlog %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
