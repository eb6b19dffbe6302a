// Command sharetoken encodes and inspects session share tokens offline.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/Dosada05/lunch-roulette/share"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "sharetoken",
		Usage:     "encode and decode lunch roulette share links",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			newEncodeCommand(),
			newDecodeCommand(),
		},
	}
}

func newEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "build a token (and link) from a browsing state",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "x", Usage: "origin longitude", Required: true},
			&cli.Float64Flag{Name: "y", Usage: "origin latitude", Required: true},
			&cli.IntFlag{Name: "radius", Aliases: []string{"d"}, Value: 100, Usage: "search radius in meters"},
			&cli.StringFlag{Name: "keyword", Aliases: []string{"q"}, Usage: "search keyword"},
			&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"ex"}, Usage: "excluded restaurant id, repeatable"},
			&cli.StringFlag{Name: "base-url", EnvVars: []string{"PUBLIC_BASE_URL"}, Usage: "print a full link on this site"},
		},
		Action: func(c *cli.Context) error {
			token, err := share.Encode(share.State{
				ExcludedIDs:  c.StringSlice("exclude"),
				OriginX:      c.Float64("x"),
				OriginY:      c.Float64("y"),
				RadiusMeters: c.Int("radius"),
				Keyword:      c.String("keyword"),
			})
			if err != nil {
				return err
			}
			if base := c.String("base-url"); base != "" {
				link, err := share.BuildURL(base, token)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, link)
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

func newDecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "print the state stored in a token or share link",
		ArgsUsage: "<token|url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one token or link", 2)
			}
			token, err := tokenFromArg(c.Args().First())
			if err != nil {
				return err
			}
			st, err := share.Decode(token)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

// tokenFromArg accepts a bare token or a link carrying it in the query.
func tokenFromArg(arg string) (string, error) {
	if !strings.Contains(arg, "://") {
		return arg, nil
	}
	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	token := u.Query().Get(share.QueryParam)
	if token == "" {
		return "", fmt.Errorf("link has no %q parameter", share.QueryParam)
	}
	return token, nil
}
