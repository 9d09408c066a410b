package main

import (
	"context"
)

func (c *maincmd) sync(ctx context.Context, _ []string) error {
	s, err := c.store(ctx)
	if err != nil {
		return err
	}
	return s.Sync(ctx)
}
