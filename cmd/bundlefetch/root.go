package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ligustah/bundlefetch/internal/blobstore"
	"github.com/ligustah/bundlefetch/internal/config"
	httpclient "github.com/ligustah/bundlefetch/internal/http"
	"github.com/ligustah/bundlefetch/internal/logging"
	"github.com/ligustah/bundlefetch/internal/progress"
	"github.com/ligustah/bundlefetch/internal/stage"
	"github.com/ligustah/bundlefetch/pkg/bundle"
	"github.com/ligustah/bundlefetch/pkg/bundle/archive"
)

// globalOptions holds the persistent flags. Empty values leave the
// configured value in place; progress applies only when set explicitly.
type globalOptions struct {
	configPath string
	cacheDir   string
	bucketURL  string
	maxSize    string
	logLevel   string
	logFormat  string
	progress   bool

	progressSet bool
}

// app is the state shared by all commands once configuration is loaded.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     config.Config
	client  *bundle.Client
	decoder *archive.Decoder
	stage   *stage.Stage
	bucket  *blobstore.Transport
}

func newRootCmd(a *app) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "bundlefetch",
		Short: "Fetch, load and extract content bundles",
		Long: `bundlefetch downloads content bundles into a local cache, loads them and
extracts scenes or assets from them.

Bundles are fetched at most once per cache directory. Sources may be
http(s):// URLs or bucket:// keys in the configured object store.`,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.progressSet = cmd.Flags().Changed("progress")
			return a.setup(cmd.Context(), opts)
		},
	}

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "Bundle cache directory")
	flags.StringVar(&opts.bucketURL, "bucket", "", "Bucket URL serving bucket:// sources (s3://, gs://, azblob://, file://)")
	flags.StringVar(&opts.maxSize, "max-size", "", "Reject bundles larger than this (e.g. 512MiB)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	flags.BoolVar(&opts.progress, "progress", false, "Show progress output")

	root.AddCommand(
		newFetchCmd(a),
		newLoadCmd(a),
		newSceneCmd(a),
		newAssetCmd(a),
		newCleanCmd(a),
		newPublishCmd(a),
		newListCmd(a),
		newUnpublishCmd(a),
	)
	return root
}

// setup resolves configuration (defaults, file, environment, flags) and
// builds the pipeline.
func (a *app) setup(ctx context.Context, opts *globalOptions) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(opts.configPath); err != nil {
			return usageError(err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return usageError(err)
	}

	override := config.Config{
		CacheDir:  opts.cacheDir,
		BucketURL: opts.bucketURL,
		Log:       config.LogConfig{Format: opts.logFormat, Level: opts.logLevel},
	}
	if opts.maxSize != "" {
		n, err := progress.ParseBytes(opts.maxSize)
		if err != nil {
			return usageErrorf("invalid --max-size: %w", err)
		}
		override.MaxSize = n
	}
	cfg = cfg.Merge(override)
	if opts.progressSet {
		cfg.Progress = opts.progress
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}

	logging.Init(cfg.Log.Format, cfg.Log.Level, a.stderr)
	a.cfg = cfg

	httpOpts := httpclient.DefaultOptions()
	httpOpts.HeaderTimeout = cfg.Timeout
	httpOpts.RetryAttempts = cfg.Retry.Attempts
	httpOpts.RetryBackoff = cfg.Retry.Backoff
	httpOpts.RetryMaxBackoff = cfg.Retry.MaxBackoff

	router := bundle.NewRouter()
	router.Handle(httpclient.NewClient(httpOpts), "http", "https")

	if cfg.BucketURL != "" {
		t, err := blobstore.OpenBucket(ctx, cfg.BucketURL)
		if err != nil {
			return storageError(err)
		}
		a.bucket = t
		router.Handle(t, blobstore.Scheme)
	}

	a.decoder = archive.NewDecoder()
	a.stage = stage.New()
	a.client = bundle.NewClient(
		bundle.NewFetcher(router,
			bundle.WithMaxSize(cfg.MaxSize),
			bundle.WithLockTimeout(cfg.LockTimeout),
		),
		bundle.NewLoader(a.decoder),
		bundle.NewExtractor(a.stage),
	)
	return nil
}

func (a *app) close() {
	if a.bucket != nil {
		a.bucket.Close()
	}
}

// requireBucket fails unless a bucket is configured.
func (a *app) requireBucket() error {
	if a.bucket == nil {
		return usageErrorf("no bucket configured; pass --bucket or set bucket_url")
	}
	return nil
}

// wait renders task progress when enabled and returns its outcome.
func wait[T any](ctx context.Context, a *app, label string, task *bundle.Task[T]) (T, error) {
	var reporter *progress.Reporter
	if a.cfg.Progress {
		reporter = progress.NewReporter(progress.Options{Label: label, Output: a.stderr})
		reporter.Start()
	}
	for f := range task.Progress() {
		if reporter != nil {
			reporter.Update(f)
		}
	}
	if reporter != nil {
		reporter.Stop()
	}
	return task.Wait(ctx)
}

func (a *app) logf(format string, args ...any) {
	fmt.Fprintf(a.stderr, "[bundlefetch] "+format+"\n", args...)
}
