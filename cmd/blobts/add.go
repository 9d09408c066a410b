package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

func (c *maincmd) add(ctx context.Context, atstr string, args []string) error {
	var blobs [][]byte
	if len(args) == 0 {
		blob, err := io.ReadAll(c.stdin)
		if err != nil {
			return errors.Wrap(err, "reading stdin")
		}
		blobs = append(blobs, blob)
	}
	for _, name := range args {
		blob, err := os.ReadFile(name)
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
		blobs = append(blobs, blob)
	}

	var ats []*time.Time
	if atstr != "" {
		at, err := parsetime(atstr)
		if err != nil {
			return errors.Wrap(err, "parsing -at")
		}
		ats = []*time.Time{&at}
	}

	s, err := c.store(ctx)
	if err != nil {
		return err
	}
	keys, err := s.AddMany(ctx, blobs, ats)
	if err != nil {
		return errors.Wrap(err, "storing blobs")
	}
	for _, k := range keys {
		fmt.Fprintln(c.stdout, k)
	}
	return nil
}
