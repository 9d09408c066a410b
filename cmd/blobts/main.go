// Command blobts is a CLI interface to a git-backed, time-indexed blob store.
//
// Usage:
//
//	blobts [-config FILE] [-root DIR] [-v N] SUBCOMMAND [ARGS]
//
// Subcommands are add, get, list, sync, and keygen.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/bobg/subcmd"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/pkg/errors"

	"github.com/bobg/blobts"
)

type maincmd struct {
	conf   config
	log    logr.Logger
	s      *blobts.Store
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	var (
		confFile  = flag.String("config", "", "path to JSON config file")
		root      = flag.String("root", "", "working directory of the git repository (overrides config)")
		verbosity = flag.Int("v", 0, "log verbosity")
	)
	flag.Parse()

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))

	var conf config
	if *confFile != "" {
		var err error
		conf, err = loadConfig(*confFile)
		if err != nil {
			log.Fatal(err)
		}
	}
	if *root != "" {
		conf.Root = *root
	}
	if conf.Root == "" {
		conf.Root = "."
	}

	c := &maincmd{conf: conf, log: logger, stdin: os.Stdin, stdout: os.Stdout}
	if err := subcmd.Run(context.Background(), c, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func (c *maincmd) Subcmds() subcmd.Map {
	return subcmd.Commands(
		"add", c.add, subcmd.Params(
			"at", subcmd.String, "", "timestamp for the first blob (default: now)",
		),
		"get", c.get, subcmd.Params(
			"dir", subcmd.String, "", "write each blob to a file named by its key in this directory instead of stdout",
			"nopull", subcmd.Bool, false, "do not pull from the remote first",
		),
		"keygen", c.keygen, subcmd.Params(
			"o", subcmd.String, "", "write the key to this file (mode 0600) instead of stdout",
		),
		"list", c.list, subcmd.Params(
			"start", subcmd.String, "", "earliest time to list (default: the epoch)",
			"end", subcmd.String, "", "latest time to list (default: forever)",
			"reverse", subcmd.Bool, false, "list newest first",
			"sizes", subcmd.Bool, false, "decode each blob and show its size",
			"nopull", subcmd.Bool, false, "do not pull from the remote first",
		),
		"sync", c.sync, nil,
	)
}

// Opens the store on first use,
// so that subcommands not needing one work outside a repository.
func (c *maincmd) store(ctx context.Context) (*blobts.Store, error) {
	if c.s != nil {
		return c.s, nil
	}
	s, err := c.conf.open(ctx, c.log)
	if err != nil {
		return nil, err
	}
	c.s = s
	return s, nil
}

var layouts = []string{
	time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly, time.ANSIC, time.UnixDate,
}

// Parses a time in one of the layouts,
// or "now",
// or a bare integer taken as a key (nanoseconds since the epoch).
func parsetime(s string) (time.Time, error) {
	if s == "now" {
		return time.Now(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return blobts.Key(n).Time(), nil
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("could not parse time %q", s)
}
