package chainctl

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/readalong/chainstore/pkg/models"
)

// Options are the global flags, given before the command.
type Options struct {
	// ConfigFile overrides CHAINSTORE_CONFIG.
	ConfigFile string
	// Backend overrides the configured store backend.
	Backend  string
	ReadOnly bool
}

const usage = `Usage: chainctl [flags] <command> [args]

Commands:
  migrate                            Create tables and indexes
  import <item> <file>               Import pages from a JSON or YAML file
  dump <item> [--start N] [--end N]  Print blocks of pages [start, end)
  ids <item> [--from ID] [--to ID]   Print block ids of a range
  verify <item>                      Check every chain of an item
  delete-block <item> <block>        Delete one block
  delete-item <item>                 Delete all blocks of an item
  copy <item> --to-backend NAME      Copy an item into another backend

Flags:
`

// Parse splits args into global options and a command.
func Parse(args []string) (Command, *Options, error) {
	opts := &Options{}
	flagSet := pflag.NewFlagSet("chainctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.ConfigFile, "config", "", "path to the YAML config file")
	flagSet.StringVar(&opts.Backend, "backend", "", "store backend: badger, surrealdb or postgres")
	flagSet.BoolVar(&opts.ReadOnly, "read-only", false, "reject every write")
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return nil, nil, fmt.Errorf("command required\n\n%s%s", usage, flagSet.FlagUsages())
	}

	cmd, err := parseCommand(rest[0], rest[1:])
	if err != nil {
		return nil, nil, err
	}
	return cmd, opts, nil
}

func parseCommand(name string, args []string) (Command, error) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)

	switch name {
	case "migrate":
		if err := positional(flagSet, args, 0); err != nil {
			return nil, err
		}
		return &MigrateCommand{}, nil

	case "import":
		if err := positional(flagSet, args, 2); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		return &ImportCommand{Item: item, File: flagSet.Arg(1)}, nil

	case "dump":
		start := flagSet.Int("start", 0, "first page")
		end := flagSet.Int("end", 0, "page to stop before")
		if err := positional(flagSet, args, 1); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		cmd := &DumpCommand{Item: item}
		if flagSet.Changed("start") {
			cmd.Start = start
		}
		if flagSet.Changed("end") {
			cmd.End = end
		}
		return cmd, nil

	case "ids":
		from := flagSet.String("from", "", "first block id (default: head)")
		to := flagSet.String("to", "", "last block id (default: tail)")
		if err := positional(flagSet, args, 1); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		cmd := &IDsCommand{Item: item}
		if cmd.From, err = parseOptionalBlock("from", *from); err != nil {
			return nil, err
		}
		if cmd.To, err = parseOptionalBlock("to", *to); err != nil {
			return nil, err
		}
		return cmd, nil

	case "verify":
		if err := positional(flagSet, args, 1); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		return &VerifyCommand{Item: item}, nil

	case "delete-block":
		if err := positional(flagSet, args, 2); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		block, err := models.ParseBlockID(flagSet.Arg(1))
		if err != nil {
			return nil, fmt.Errorf("invalid block id %q: %w", flagSet.Arg(1), err)
		}
		return &DeleteBlockCommand{Item: item, Block: block}, nil

	case "delete-item":
		if err := positional(flagSet, args, 1); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		return &DeleteItemCommand{Item: item}, nil

	case "copy":
		backend := flagSet.String("to-backend", "", "target store backend")
		toItem := flagSet.String("to-item", "", "item id in the target (default: same id)")
		if err := positional(flagSet, args, 1); err != nil {
			return nil, err
		}
		item, err := parseItem(flagSet.Arg(0))
		if err != nil {
			return nil, err
		}
		if *backend == "" {
			return nil, fmt.Errorf("copy: --to-backend is required")
		}
		cmd := &CopyCommand{Item: item, ToBackend: *backend, ToItem: item}
		if *toItem != "" {
			if cmd.ToItem, err = parseItem(*toItem); err != nil {
				return nil, err
			}
		}
		return cmd, nil
	}
	return nil, fmt.Errorf("unknown command: %s\n\n%s", name, usage)
}

// positional parses flagSet and checks the number of remaining arguments.
func positional(flagSet *pflag.FlagSet, args []string, n int) error {
	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", flagSet.Name(), err)
	}
	if flagSet.NArg() != n {
		return fmt.Errorf("%s: want %d arguments, got %d", flagSet.Name(), n, flagSet.NArg())
	}
	return nil
}

func parseItem(s string) (models.ItemID, error) {
	item, err := models.ParseItemID(s)
	if err != nil {
		return models.ItemID{}, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	return item, nil
}

func parseOptionalBlock(flag, s string) (*models.BlockID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := models.ParseBlockID(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s block id %q: %w", flag, s, err)
	}
	return &id, nil
}
