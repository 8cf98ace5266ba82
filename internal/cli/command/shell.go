package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ttlstash/internal/cli/repl"
)

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively against one open store",
		Description: `Reads commands such as "set --ttl 60 k v" or "keys" line by line.
The store stays open between lines, so a memory backend keeps its
contents for the whole session. Flags go before positional arguments.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "File holding the command history",
				Value: repl.DefaultHistoryFile(),
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write the history file",
			},
		},
		Action: func(c *cli.Context) error {
			store, err := connect(c, true)
			if err != nil {
				return err
			}

			file := c.String("history-file")
			if c.Bool("no-history") {
				file = ""
			}

			r := repl.New(
				func(args []string) error {
					return shellApp(c).RunContext(c.Context, append([]string{"ttlstash"}, args...))
				},
				repl.WithIO(c.App.Reader, c.App.Writer),
				repl.WithPrompt(fmt.Sprintf("ttlstash[%s]> ", store.Namespace())),
				repl.WithCompleter(repl.NewCompleter(commandNames(shellCommands()))),
				repl.WithHistory(repl.NewHistory(file, repl.DefaultHistorySize)),
			)
			return r.Run()
		},
	}
}

// shellCommands are the commands reachable from inside the shell.
func shellCommands() []*cli.Command {
	return []*cli.Command{
		GetCommand(),
		SetCommand(),
		TTLCommand(),
		ExpireCommand(),
		RemoveCommand(),
		HasCommand(),
		KeysCommand(),
		ClearCommand(),
		StatusCommand(),
		StatsCommand(),
		ConfigCommand(),
		VersionCommand(),
	}
}

// shellApp builds the application that runs one shell line. It shares the
// parent's metadata, so every line reuses the parent's open store, and it
// has no Before or After: the parent owns setup and teardown.
func shellApp(parent *cli.Context) *cli.App {
	return &cli.App{
		Name:           "ttlstash",
		HideVersion:    true,
		Writer:         parent.App.Writer,
		ErrWriter:      parent.App.ErrWriter,
		Metadata:       parent.App.Metadata,
		Commands:       shellCommands(),
		ExitErrHandler: func(*cli.Context, error) {},
		Action:         unknownCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   parent.String("output"),
			},
		},
	}
}

// unknownCommand runs when a line names no shell command.
func unknownCommand(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}
	return cli.ShowAppHelp(c)
}

func commandNames(cmds []*cli.Command) []string {
	var names []string
	for _, cmd := range cmds {
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}
	return names
}
