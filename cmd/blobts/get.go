package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bobg/blobts"
)

func (c *maincmd) get(ctx context.Context, dir string, nopull bool, args []string) error {
	if len(args) == 0 {
		return errors.New("missing key")
	}

	var keys []blobts.Key
	for _, arg := range args {
		k, err := blobts.ParseKey(arg)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}

	s, err := c.store(ctx)
	if err != nil {
		return err
	}
	if !nopull {
		if err = s.Sync(ctx); err != nil {
			return err
		}
	}

	for _, k := range keys {
		blob, err := s.Get(ctx, k)
		if err != nil {
			return errors.Wrapf(err, "getting blob %s", k)
		}
		if dir != "" {
			if err = os.WriteFile(filepath.Join(dir, k.String()), blob, 0644); err != nil {
				return errors.Wrapf(err, "writing blob %s", k)
			}
			continue
		}
		if _, err = c.stdout.Write(blob); err != nil {
			return errors.Wrap(err, "writing blob to stdout")
		}
	}
	return nil
}
