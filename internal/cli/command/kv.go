package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// ErrKeyNotFound is returned by get when the key is absent or expired and
// no default was given.
var ErrKeyNotFound = errors.New("key not found")

// ttlFlags are the mutually exclusive ways to give an expiry.
func ttlFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  "ttl",
			Usage: "Expire after this many seconds (0 clears the expiry)",
		},
		&cli.StringFlag{
			Name:  "expires",
			Usage: "Expire at an RFC 3339 instant",
		},
		&cli.StringFlag{
			Name:  "until",
			Usage: "Expire at a calendar boundary: today, thisMonth, thisYear",
		},
		&cli.StringFlag{
			Name:  "offset",
			Usage: "Expire after a calendar offset such as 1d12h or 1mo",
		},
	}
}

// ttlFromFlags returns the TTL given on the command line, nil for none.
func ttlFromFlags(c *cli.Context) (ttlstash.TTL, error) {
	var set []string
	for _, name := range []string{"ttl", "expires", "until", "offset"} {
		if c.IsSet(name) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		return nil, fmt.Errorf("only one of %v may be given", set)
	}

	switch {
	case c.IsSet("ttl"):
		return ttlstash.Seconds(c.Float64("ttl")), nil
	case c.IsSet("expires"):
		t, err := time.Parse(time.RFC3339, c.String("expires"))
		if err != nil {
			return nil, fmt.Errorf("--expires: %w", err)
		}
		return ttlstash.At(t), nil
	case c.IsSet("until"):
		return ttlstash.ParseSymbolic(c.String("until"))
	case c.IsSet("offset"):
		return ttlstash.ParseOffset(c.String("offset"))
	}
	return nil, nil
}

// parseValue reads a command-line value as JSON, falling back to a plain
// string when it is not valid JSON.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func requireKey(c *cli.Context) (string, error) {
	key := c.Args().First()
	if key == "" {
		return "", fmt.Errorf("%s: KEY is required", c.Command.Name)
	}
	return key, nil
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value under KEY",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "default",
				Usage: "JSON value printed when KEY is absent or expired",
			},
		},
		Action: func(c *cli.Context) error {
			key, err := requireKey(c)
			if err != nil {
				return err
			}
			store, err := connect(c, false)
			if err != nil {
				return err
			}

			var def any
			if c.IsSet("default") {
				def = parseValue(c.String("default"))
			}
			v := store.Get(key, def)
			if v == nil && !c.IsSet("default") && !store.HasKey(key) {
				return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}
			return render(c, v)
		},
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store VALUE (JSON, or a plain string) under KEY",
		ArgsUsage: "KEY VALUE",
		Flags:     ttlFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("set: KEY and VALUE are required")
			}
			ttl, err := ttlFromFlags(c)
			if err != nil {
				return err
			}
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			return store.Set(c.Args().Get(0), parseValue(c.Args().Get(1)), ttl)
		},
	}
}

// ttlInfo describes the expiry of one key.
type ttlInfo struct {
	Key       string `json:"key" yaml:"key"`
	Expires   bool   `json:"expires" yaml:"expires"`
	ExpiresAt string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	EpochMS   int64  `json:"epoch_ms,omitempty" yaml:"epoch_ms,omitempty"`
	Remaining string `json:"remaining,omitempty" yaml:"remaining,omitempty"`
}

// TTLCommand returns the ttl command.
func TTLCommand() *cli.Command {
	return &cli.Command{
		Name:      "ttl",
		Usage:     "Show the expiry of KEY",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			key, err := requireKey(c)
			if err != nil {
				return err
			}
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			if !store.HasKey(key) {
				return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}

			info := ttlInfo{Key: key}
			if ms, ok := store.GetTTL(key); ok {
				at := time.UnixMilli(ms)
				info.Expires = true
				info.ExpiresAt = at.Format(time.RFC3339)
				info.EpochMS = ms
				info.Remaining = time.Until(at).Truncate(time.Second).String()
			}
			return render(c, info)
		},
	}
}

// ExpireCommand returns the expire command.
func ExpireCommand() *cli.Command {
	return &cli.Command{
		Name:      "expire",
		Usage:     "Set or clear the expiry of KEY (no flag clears it)",
		ArgsUsage: "KEY",
		Flags:     ttlFlags(),
		Action: func(c *cli.Context) error {
			key, err := requireKey(c)
			if err != nil {
				return err
			}
			ttl, err := ttlFromFlags(c)
			if err != nil {
				return err
			}
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			if !store.HasKey(key) {
				return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}
			return store.SetTTL(key, ttl)
		},
	}
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove", "del"},
		Usage:     "Remove KEY",
		ArgsUsage: "KEY...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("rm: KEY is required")
			}
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			for _, key := range c.Args().Slice() {
				if err := store.Remove(key); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// HasCommand returns the has command.
func HasCommand() *cli.Command {
	return &cli.Command{
		Name:      "has",
		Usage:     "Print whether KEY is present",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			key, err := requireKey(c)
			if err != nil {
				return err
			}
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			return render(c, store.HasKey(key))
		},
	}
}

// KeysCommand returns the keys command.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "List the keys in the namespace",
		Action: func(c *cli.Context) error {
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			return render(c, store.Keys())
		},
	}
}

// ClearCommand returns the clear command.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every key in the namespace",
		Action: func(c *cli.Context) error {
			store, err := connect(c, false)
			if err != nil {
				return err
			}
			return store.Clear()
		},
	}
}
