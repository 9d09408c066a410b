package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/blobts"
)

func (c *maincmd) list(ctx context.Context, start, end string, reverse, sizes, nopull bool, _ []string) error {
	iv := blobts.All()
	if start != "" {
		t, err := parsetime(start)
		if err != nil {
			return errors.Wrap(err, "parsing -start")
		}
		iv.Start = blobts.Between(t, t).Start
	}
	if end != "" {
		t, err := parsetime(end)
		if err != nil {
			return errors.Wrap(err, "parsing -end")
		}
		iv.End = blobts.Between(t, t).End
	}
	if reverse {
		iv.Start, iv.End = iv.End, iv.Start
	}

	s, err := c.store(ctx)
	if err != nil {
		return err
	}
	opts := []blobts.QueryOption{blobts.WithPull(!nopull)}

	if !sizes {
		keys, err := s.Keys(ctx, iv, opts...)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintf(c.stdout, "%s %s\n", k, k.Time().Format(time.RFC3339Nano))
		}
		return nil
	}

	return s.Query(ctx, iv, func(b blobts.Blob) error {
		fmt.Fprintf(c.stdout, "%s %s %d\n", b.Key, b.Key.Time().Format(time.RFC3339Nano), len(b.Data))
		return nil
	}, opts...)
}
