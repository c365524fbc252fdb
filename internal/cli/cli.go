package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Record  *RecordCommand
	Serve   *ServeCommand
	Refresh *RefreshCommand
	Note    *NoteCommand
	Blog    *BlogCommand
	Status  *StatusCommand
	Prune   *PruneCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "ulogme"
	parser.LongDescription = "Log the focused window and keystroke frequency, and compile the logs into per-day exports for the ulogme viewer."

	cmds := &commands{
		Record:  &RecordCommand{globals: &globals, version: version},
		Serve:   &ServeCommand{globals: &globals, version: version},
		Refresh: &RefreshCommand{globals: &globals, version: version},
		Note:    &NoteCommand{globals: &globals, version: version},
		Blog:    &BlogCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Prune:   &PruneCommand{globals: &globals, version: version},
	}

	parser.AddCommand("record", "Record window and keystroke activity", "Run the window and keystroke samplers until interrupted.", cmds.Record)
	parser.AddCommand("serve", "Serve the viewer and control endpoints", "Serve the render directory with the refresh, note and blog endpoints, and refresh exports on a schedule.", cmds.Serve)
	parser.AddCommand("refresh", "Rebuild stale day exports", "Rebuild the export of every day whose logs changed, and rewrite the manifest.", cmds.Refresh)
	parser.AddCommand("note", "Add a note", "Append a note to the notes log of the day owning the given time.", cmds.Note)
	parser.AddCommand("blog", "Set the day's blog", "Replace the blog entry of the day owning the given time.", cmds.Blog)
	parser.AddCommand("status", "Show exported days and rebuild history", "Show log and render directories, exported days and recent rebuilds.", cmds.Status)
	parser.AddCommand("prune", "Delete old rebuild history", "Delete rebuild and audit history older than the retention period.", cmds.Prune)

	return parser, &globals, cmds
}

// Run is the main entry point for the ulogme CLI using os.Args.
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
			fmt.Printf("ulogme %s\n", version)
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
