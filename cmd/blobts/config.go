package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/bobg/blobts"
	"github.com/bobg/blobts/vcs/git"
	"github.com/bobg/blobts/vcs/logging"
)

type config struct {
	Root         string `json:"root"`
	Remote       string `json:"remote"`
	Branch       string `json:"branch"`
	Compression  string `json:"compression"`
	Key          string `json:"key"`
	KeyFile      string `json:"key_file"`
	CacheSize    int    `json:"cache_size"`
	PushAttempts int    `json:"push_attempts"`
}

func loadConfig(filename string) (config, error) {
	var conf config
	f, err := os.Open(filename)
	if err != nil {
		return conf, errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&conf); err != nil {
		return conf, errors.Wrapf(err, "decoding config file %s", filename)
	}
	return conf, nil
}

func (c config) options(log logr.Logger) ([]blobts.Option, error) {
	opts := []blobts.Option{
		blobts.WithLogger(log),
		blobts.WithCompression(c.Compression),
	}

	key := []byte(c.Key)
	if c.KeyFile != "" {
		if len(key) > 0 {
			return nil, errors.New("config has both key and key_file")
		}
		var err error
		key, err = os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "reading key file %s", c.KeyFile)
		}
		key = bytes.TrimSpace(key)
	}
	if len(key) > 0 {
		opts = append(opts, blobts.WithKey(key))
	}

	if c.CacheSize > 0 {
		opts = append(opts, blobts.WithCacheSize(c.CacheSize))
	}
	if c.PushAttempts > 0 {
		opts = append(opts, blobts.WithMaxPushAttempts(c.PushAttempts))
	}
	return opts, nil
}

func (c config) open(ctx context.Context, log logr.Logger) (*blobts.Store, error) {
	opts, err := c.options(log)
	if err != nil {
		return nil, err
	}

	var gitOpts []git.Option
	if c.Remote != "" {
		gitOpts = append(gitOpts, git.WithRemote(c.Remote))
	}
	if c.Branch != "" {
		gitOpts = append(gitOpts, git.WithBranch(c.Branch))
	}
	repo, err := git.Open(ctx, c.Root, gitOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "opening repository %s", c.Root)
	}

	return blobts.New(logging.New(repo, log.WithName("git")), opts...)
}
