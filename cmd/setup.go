package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/encoder"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/schollz/progressbar/v3"
)

// app holds the services shared by the commands.
type app struct {
	cfg     *config.Config
	pool    *postgres.Pool // nil with the CSV ledger
	events  *postgres.LedgerStore
	cache   *postgres.EmbeddingCache
	ledger  *ledger.Ledger
	images  *gallery.ImageStore
	encoder *encoder.Client
}

// newApp loads the configuration and opens the ledger store. The PostgreSQL
// store is used when DATABASE_URL is set, the CSV file otherwise.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	a := &app{
		cfg:     cfg,
		images:  gallery.NewImageStore(cfg.Storage.DatasetDir),
		encoder: encoder.NewClient(cfg.Embedding.URL, cfg.Embedding.Timeout),
	}

	var store ledger.Store
	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.pool = pool
		a.events = postgres.NewLedgerStore(pool)
		a.cache = postgres.NewEmbeddingCache(pool)
		store = a.events
	} else {
		store = ledger.NewCSVStore(cfg.Storage.LedgerPath)
	}
	a.ledger = ledger.New(store, nil)
	return a, nil
}

// Close releases the database connection, if any.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// loader returns a gallery loader using the embedding cache when available.
func (a *app) loader() *gallery.Loader {
	l := gallery.NewLoader(a.images, a.encoder, a.cfg.Matching.Workers)
	if a.cache != nil {
		l.WithCache(a.cache)
	}
	return l
}

// enrollment returns the enrollment service. Images are checked for a face
// unless skipFaceCheck is set.
func (a *app) enrollment(skipFaceCheck bool) *enrollment.Service {
	svc := enrollment.New(a.ledger, a.images)
	if !skipFaceCheck {
		svc.WithFaces(a.loader())
	}
	if a.cache != nil {
		svc.WithCache(a.cache)
	}
	return svc
}

// buildGallery encodes the dataset directory, showing a progress bar unless quiet.
func (a *app) buildGallery(ctx context.Context, quiet bool) (*facematch.Gallery, gallery.Report, error) {
	l := a.loader()

	if !quiet {
		count, err := l.Count()
		if err != nil {
			return nil, gallery.Report{}, err
		}
		bar := progressbar.NewOptions(count,
			progressbar.OptionSetDescription("Loading faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
		l.OnProgress(func() { bar.Add(1) })
		defer func() {
			bar.Finish()
			fmt.Println()
		}()
	}

	g, report, err := l.Load(ctx, a.cfg.Matching.Tolerance)
	if err != nil {
		return nil, gallery.Report{}, fmt.Errorf("failed to load gallery: %w", err)
	}
	return g, report, nil
}
