package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haivivi/diarize/pkg/cli"
	"github.com/haivivi/diarize/pkg/speaker"
	"github.com/haivivi/diarize/pkg/storage"
	"github.com/haivivi/diarize/pkg/stream"
)

var errNoStore = errors.New("profile store disabled (store.kind is none)")

// profileStores resolves per-session speaker stores for a context.
type profileStores struct {
	kind     string
	location string

	files storage.FileStore
	codec speaker.Codec
	kv    *speaker.KV
}

func openProfileStores(ctx context.Context, c *cli.Context, paths *cli.Paths, log *slog.Logger) (*profileStores, error) {
	p := &profileStores{kind: c.StoreKind(), location: paths.StoreLocation(c)}
	if p.kind == cli.StoreNone {
		return p, nil
	}
	if c.Store.Location == "" {
		if err := paths.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	switch p.kind {
	case cli.StoreFile:
		codec, err := speaker.ParseCodec(c.Store.Codec)
		if err != nil {
			return nil, err
		}
		files, err := storage.Open(ctx, p.location, c.Store.S3)
		if err != nil {
			return nil, err
		}
		p.files, p.codec = files, codec
		return p, nil
	case cli.StoreBadger:
		kv, err := speaker.OpenKV(speaker.KVOptions{Dir: p.location, Logger: log})
		if err != nil {
			return nil, err
		}
		p.kv = kv
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", p.kind)
	}
}

// Open returns the store for session.
func (p *profileStores) Open(_ context.Context, session string) (speaker.Store, error) {
	switch p.kind {
	case cli.StoreFile:
		return speaker.NewFileStore(p.files, session+"."+p.codec.Ext(), p.codec), nil
	case cli.StoreBadger:
		st, err := p.kv.Session(session)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, errNoStore
	}
}

// Opener adapts Open for the stream server; nil when persistence is off.
func (p *profileStores) Opener() stream.Opener {
	if p.kind == cli.StoreNone {
		return nil
	}
	return p.Open
}

// Sessions lists sessions with saved profiles. Only badger stores can
// enumerate their sessions.
func (p *profileStores) Sessions(ctx context.Context) ([]string, error) {
	if p.kv == nil {
		return nil, fmt.Errorf("listing sessions needs a badger store, context uses %q", p.kind)
	}
	return p.kv.Sessions(ctx)
}

func (p *profileStores) Close() error {
	if p.kv != nil {
		return p.kv.Close()
	}
	return nil
}

// openContextStores resolves the active context and opens its stores.
func openContextStores(ctx context.Context) (*cli.Context, *profileStores, error) {
	c, err := getContext()
	if err != nil {
		return nil, nil, err
	}
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, nil, err
	}
	stores, err := openProfileStores(ctx, c, paths, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("open profile store: %w", err)
	}
	return c, stores, nil
}
