package dataset

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/fetcher"
	"github.com/sells-group/compliance-cli/internal/model"
)

// DefaultMaxBytes bounds a single source.
const DefaultMaxBytes = 256 << 20

// Loader reads datasets from local paths and remote URLs.
type Loader struct {
	http     fetcher.Fetcher
	ftp      fetcher.Fetcher
	maxBytes int64
	format   Format
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPFetcher overrides the fetcher used for http and https URLs.
func WithHTTPFetcher(f fetcher.Fetcher) LoaderOption {
	return func(l *Loader) { l.http = f }
}

// WithFTPFetcher overrides the fetcher used for ftp URLs.
func WithFTPFetcher(f fetcher.Fetcher) LoaderOption {
	return func(l *Loader) { l.ftp = f }
}

// WithMaxBytes bounds the size of a single source.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) { l.maxBytes = n }
}

// WithFormat forces a format instead of inferring it from the source name.
func WithFormat(f Format) LoaderOption {
	return func(l *Loader) { l.format = f }
}

// NewLoader creates a loader whose remote fetchers follow cfg.
func NewLoader(cfg config.LoaderConfig, opts ...LoaderOption) *Loader {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	l := &Loader{
		http: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.MaxRetries,
			RatePerSec: cfg.RatePerSec,
		}),
		ftp:      fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
		maxBytes: DefaultMaxBytes,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads one dataset. src is a local path or an http, https or ftp URL.
func (l *Loader) Load(ctx context.Context, src string) (model.Dataset, error) {
	start := time.Now()
	data, name, err := l.read(ctx, src)
	if err != nil {
		return model.Dataset{}, err
	}

	ds, err := Parse(ctx, name, l.format, data)
	if err != nil {
		return model.Dataset{}, err
	}

	zap.L().Info("dataset loaded",
		zap.String("source", redact(src)),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// LoadPair loads the registry and EPC datasets concurrently.
func (l *Loader) LoadPair(ctx context.Context, registrySrc, epcSrc string) (registry, epc model.Dataset, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ds, err := l.Load(gctx, registrySrc)
		if err != nil {
			return eris.Wrap(err, "dataset: load registry")
		}
		registry = ds
		return nil
	})
	g.Go(func() error {
		ds, err := l.Load(gctx, epcSrc)
		if err != nil {
			return eris.Wrap(err, "dataset: load epc")
		}
		epc = ds
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Dataset{}, model.Dataset{}, err
	}
	return registry, epc, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, string, error) {
	u, err := url.Parse(src)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			data, err := fetcher.ReadAll(ctx, l.http, src, l.maxBytes)
			return data, sourceName(u), err
		case "ftp":
			data, err := fetcher.ReadAll(ctx, l.ftp, src, l.maxBytes)
			return data, sourceName(u), err
		}
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, "", eris.Wrapf(err, "dataset: stat %s", src)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, "", eris.Errorf("dataset: %s exceeds %d bytes", src, l.maxBytes)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, "", eris.Wrapf(err, "dataset: read %s", src)
	}
	return data, filepath.Base(src), nil
}

func sourceName(u *url.URL) string {
	if base := filepath.Base(u.Path); base != "." && base != "/" {
		return base
	}
	return u.Host
}

func redact(src string) string {
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return src
}
