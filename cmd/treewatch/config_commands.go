package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/treewatch/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
	out        io.Writer
	in         io.Reader
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "init":
		return c.runInit(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the effective configuration.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := config.NewLoader(c.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch *format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(c.out, string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(c.out, "# Current Configuration")
		fmt.Fprintln(c.out, "# Source:", configSource(loader))
		fmt.Fprintln(c.out)
		fmt.Fprint(c.out, string(data))
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be yaml or json", *format)
	}
}

// runPath shows the configuration file search path.
func (c *configCommand) runPath() error {
	paths := []string{
		"./treewatch.yaml",
		config.DefaultPath(),
	}

	fmt.Fprintln(c.out, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.out)

	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(c.out, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "%s overrides the search; TREEWATCH_* variables override the file.\n", config.EnvConfig)
	fmt.Fprintln(c.out, "Active configuration:", configSource(config.NewLoader(c.configPath)))
	return nil
}

// runInit writes a configuration file with default values.
func (c *configCommand) runInit(args []string) error {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite without confirmation")
	output := fs.String("output", "", "output path (default: ~/.config/treewatch/config.yaml)")
	root := fs.String("m", "", "directory to monitor")

	if err := fs.Parse(args); err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = config.DefaultPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !*force {
		fmt.Fprintf(c.out, "Configuration file already exists at: %s\n", outputPath)
		fmt.Fprint(c.out, "Overwrite? [y/N]: ")

		if !c.confirm() {
			fmt.Fprintln(c.out, "Init cancelled.")
			return nil
		}
	}

	cfg := config.Default()
	cfg.Watch.Root = *root

	if err := config.Save(cfg, outputPath); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Configuration written to: %s\n", outputPath)
	return nil
}

// confirm reads a yes/no answer; anything but yes is no.
func (c *configCommand) confirm() bool {
	in := c.in
	if in == nil {
		in = os.Stdin
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}

// configSource describes where the loader takes its settings from.
func configSource(loader config.Loader) string {
	if p := loader.Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  treewatch config <subcommand> [flags]

Subcommands:
  show      Display the effective configuration
  path      Show configuration file paths
  init      Write a configuration file with default values

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Init Flags:
  -m        Directory to monitor
  -force    Overwrite without confirmation
  -output   Output path for config file

Examples:
  # Show current configuration
  treewatch config show

  # Start a configuration for /srv/share
  treewatch config init -m /srv/share
`
	fmt.Fprint(c.out, help)
	return nil
}
