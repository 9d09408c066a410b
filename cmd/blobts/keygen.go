package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/blobts/codec"
)

func (c *maincmd) keygen(_ context.Context, out string, _ []string) error {
	key, err := codec.GenerateKey()
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Fprintln(c.stdout, string(key))
		return nil
	}
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrapf(err, "creating %s", out)
	}
	if _, err = fmt.Fprintln(f, string(key)); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", out)
	}
	return errors.Wrapf(f.Close(), "closing %s", out)
}
