// Package main provides the treewatch CLI application.
//
// treewatch watches a directory tree and streams change notifications to
// WebSocket subscribers. Each subscriber picks the event categories it wants
// with a bitmask.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// version is set during build time.
var version = "dev"

// stdout receives command output.
var stdout io.Writer = os.Stdout

// errUnknownCommand is returned for an unrecognized command name.
var errUnknownCommand = errors.New("unknown command")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run(args []string) error {
	fs := flag.NewFlagSet("treewatch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "show version information")
	fs.Usage = func() { _ = showUsage() }

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "treewatch %s\n", version)
		return nil
	}

	args = fs.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "serve":
		cmd, err := parseServeCommand(*configPath, args[1:])
		if err != nil {
			return err
		}
		return cmd.Execute()
	case "tail":
		cmd, err := parseTailCommand(args[1:])
		if err != nil {
			return err
		}
		return cmd.Execute()
	case "stats":
		cmd, err := parseStatsCommand(*configPath, args[1:])
		if err != nil {
			return err
		}
		return cmd.Execute()
	case "config":
		cmd := &configCommand{configPath: *configPath, out: stdout}
		return cmd.Execute(args[1:])
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

// stringList is a repeatable string flag.
type stringList []string

// String implements flag.Value.
func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

// Set implements flag.Value.
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// showUsage displays usage information.
func showUsage() error {
	usage := `treewatch - directory tree change notifications over WebSocket

Usage:
  treewatch [flags] <command> [command flags]

Commands:
  serve       Watch a directory tree and serve subscribers
  tail        Subscribe to a server and print events
  stats       Display event statistics
  config      Configuration management (show, path, init)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Serve Command Flags:
  -m          Directory to monitor (required unless configured)
  -a          TCP address of the listening interface (default: 0.0.0.0)
  -p          Port to listen on (default: 8080)
  -x          Directory pattern to exclude; repeatable. Doesn't have to be a full path
  -l          Log level (trace, debug, info, warn, error)
  -backend    Event source backend (inotify, fsnotify)
  -db         Statistics database path
  -no-stats   Do not persist statistics

Tail Command Flags:
  -url        Server URL (default: ws://localhost:8080/)
  -mask       Categories to receive: names or a number (default: all)
  -format     Output format (text, json); default text on a terminal, json otherwise

Stats Command Flags:
  -live       Query a running server instead of the database (e.g. http://localhost:8080)
  -format     Output format (table, json, simple)
  -top        Show the top N directories by events
  -compact    Compact output

Examples:
  # Monitor /srv/share, skipping Synology metadata directories
  treewatch serve -m /srv/share -x '@eaDir' -x '#recycle' -l debug

  # Print creations and deletions as they happen
  treewatch tail -mask create,delete

  # Everything, as JSON lines
  treewatch tail -mask any -format json

  # Statistics of the running server
  treewatch stats -live http://localhost:8080 -top 10

  # Statistics saved by the last run
  treewatch stats

Subscriber protocol:
  Connect with WebSocket to / and send {"command":"subscribe","mask":<integer>}.
  Events arrive as {"path":...,"name":...,"mask":...,"cookie":...}.

Version: %s
`

	fmt.Fprintf(stdout, usage, version)
	return nil
}
