package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gyeh/billcheck/internal/cache"
	"github.com/gyeh/billcheck/internal/cloud"
	"github.com/gyeh/billcheck/internal/cms"
	"github.com/gyeh/billcheck/internal/config"
	"github.com/gyeh/billcheck/internal/document"
	"github.com/gyeh/billcheck/internal/extract"
	"github.com/gyeh/billcheck/internal/hospital"
	"github.com/gyeh/billcheck/internal/logging"
	"github.com/gyeh/billcheck/internal/pricing"
	"github.com/gyeh/billcheck/internal/report"
	"github.com/gyeh/billcheck/internal/worker"
)

// app holds what every command shares: configuration and the logger.
type app struct {
	cfgPath  string
	logLevel string

	cfg *config.Config
	log zerolog.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) cacheStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.BackendNone:
		return cache.Nop{}, nil
	case config.BackendS3:
		c, err := cloud.NewS3Client(ctx, a.cfg.Cache.S3Bucket, a.cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		return c.CacheStore(a.cfg.Cache.S3Prefix, a.cfg.Cache.TTL), nil
	default:
		return cache.NewFileStore(a.cfg.Cache.Dir, a.cfg.Cache.TTL)
	}
}

func (a *app) apiClient() *cms.Client {
	c := cms.NewClient(a.cfg.CMS.BaseURL, a.cfg.CMS.Timeout, a.log)
	c.Retries = a.cfg.CMS.Retries
	return c
}

// querier returns the offline snapshot when one is configured, otherwise
// the CMS Data API. cleanup removes any split files.
func (a *app) querier() (cms.Querier, func(), error) {
	if a.cfg.CMS.Snapshot == "" {
		return a.apiClient(), func() {}, nil
	}
	dir, err := os.MkdirTemp("", "billcheck-snapshot-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }
	snap, err := cms.OpenSnapshot(a.cfg.CMS.Snapshot, dir, a.log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("opening snapshot: %w", err)
	}
	a.log.Info().Str("path", a.cfg.CMS.Snapshot).Strs("datasets", snap.Datasets()).Msg("using offline snapshot")
	return snap, cleanup, nil
}

func (a *app) resolver(ctx context.Context) (*pricing.Resolver, func(), error) {
	store, err := a.cacheStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	src, cleanup, err := a.querier()
	if err != nil {
		return nil, nil, err
	}
	return pricing.NewResolver(src, store, a.log), cleanup, nil
}

// pipeline wires extraction and comparison. Reference lookups are only set
// up when useReference is true.
func (a *app) pipeline(ctx context.Context, useReference bool) (*worker.Pipeline, func(), error) {
	cmp := &report.Comparer{Hospitals: hospital.Default(), Logger: a.log}
	cleanup := func() {}
	if useReference {
		r, c, err := a.resolver(ctx)
		if err != nil {
			return nil, nil, err
		}
		cmp.Resolver = r
		cleanup = c
	}
	return &worker.Pipeline{
		Extractor:    &extract.Extractor{AllowFallback: a.cfg.Extract.AllowFallback, Logger: a.log},
		Comparer:     cmp,
		UseReference: useReference,
		Logger:       a.log,
	}, cleanup, nil
}

func (a *app) uploads(ctx context.Context) (document.Store, error) {
	if a.cfg.Upload.Backend != config.BackendMinio {
		return document.NewFileStore(a.cfg.Upload.Dir)
	}
	m := a.cfg.Minio
	s, err := document.NewMinioStore(document.MinioConfig{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		UseSSL:    m.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
