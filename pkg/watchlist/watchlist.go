// Package watchlist is the entry point for applications: it opens the
// configured store, keeps a local mirror of the table and derives the lists
// a client displays.
//
// Typical use:
//
//	w, err := watchlist.Open(ctx, cfg, watchlist.WithLogger(log))
//	if err != nil { ... }
//	defer w.Close()
//	if err := w.Refresh(ctx); err != nil { ... }
//	recs := w.ListView("Family", view.SortHighest)
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/watchlist/internal/dynamo"
	"github.com/mesh-intelligence/watchlist/internal/jsonl"
	"github.com/mesh-intelligence/watchlist/internal/metrics"
	"github.com/mesh-intelligence/watchlist/internal/mirror"
	"github.com/mesh-intelligence/watchlist/internal/poster"
	"github.com/mesh-intelligence/watchlist/internal/sqlite"
	"github.com/mesh-intelligence/watchlist/internal/view"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// Watchlist ties a store, its mirror and the poster lookup together.
type Watchlist struct {
	cfg     types.Config
	store   types.Store
	mirror  *mirror.Mirror
	posters *poster.Client
	log     logrus.FieldLogger
}

type options struct {
	log        logrus.FieldLogger
	store      types.Store
	httpClient *http.Client
	posterURL  string
	newID      func() string
}

// Option customizes Open.
type Option func(*options)

// WithLogger sets the logger used by the mirror and the facade.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s types.Store) Option {
	return func(o *options) { o.store = s }
}

// WithPosterEndpoint points poster lookups at baseURL using client.
func WithPosterEndpoint(baseURL string, client *http.Client) Option {
	return func(o *options) {
		o.posterURL = baseURL
		o.httpClient = client
	}
}

// WithIDFunc overrides record id generation.
func WithIDFunc(f func() string) Option {
	return func(o *options) { o.newID = f }
}

// Open validates cfg, opens its backend and returns an unloaded watchlist.
// Call Refresh to fill the snapshot.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Watchlist, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	store = metrics.InstrumentStore(store, cfg.Backend)

	w := &Watchlist{
		cfg:   cfg,
		store: store,
		mirror: mirror.New(store, mirror.Config{
			OpTimeout:   cfg.OpTimeout,
			MaxInFlight: cfg.MaxInFlight,
			Logger:      o.log,
			NewID:       o.newID,
		}),
		posters: poster.New(poster.Config{
			APIKey:    cfg.TMDBAPIKey,
			BaseURL:   o.posterURL,
			CacheSize: cfg.PosterCacheSize,
			CacheTTL:  cfg.PosterCacheTTL,
			HTTP:      o.httpClient,
		}),
		log: o.log,
	}
	w.log.WithFields(logrus.Fields{"backend": cfg.Backend, "table": cfg.Table}).Debug("watchlist opened")
	return w, nil
}

func openStore(ctx context.Context, cfg types.Config) (types.Store, error) {
	switch cfg.Backend {
	case types.BackendSQLite:
		s, err := sqlite.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite backend: %w", err)
		}
		return s, nil
	case types.BackendDynamoDB:
		s, err := dynamo.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("opening dynamodb backend: %w", err)
		}
		return s, nil
	default:
		return nil, types.ErrBackendUnknown
	}
}

// Config returns the effective configuration.
func (w *Watchlist) Config() types.Config {
	return w.cfg
}

// Refresh reloads the snapshot from the store. On failure the snapshot is
// left empty and Loaded reports false.
func (w *Watchlist) Refresh(ctx context.Context) error {
	return w.mirror.Load(ctx)
}

// Loaded reports whether the last Refresh succeeded.
func (w *Watchlist) Loaded() bool {
	return w.mirror.Loaded()
}

// Len returns the number of records in the snapshot.
func (w *Watchlist) Len() int {
	return w.mirror.Len()
}

// ListView returns the snapshot filtered to genre (all when empty) and
// sorted by order.
func (w *Watchlist) ListView(genre string, order view.SortOrder) []types.Record {
	return view.Apply(w.mirror.Snapshot(), genre, order)
}

// Genres lists the genres present in the snapshot.
func (w *Watchlist) Genres() []string {
	return view.Genres(w.mirror.Snapshot())
}

// Get returns the record with id from the snapshot.
func (w *Watchlist) Get(id string) (types.Record, error) {
	r, ok := w.mirror.Get(id)
	if !ok {
		return types.Record{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return r, nil
}

// AddRecord creates a record from raw form input. rating is parsed
// leniently: its leading integer is used and clamped to 0..5, anything else
// becomes 0.
func (w *Watchlist) AddRecord(ctx context.Context, title, genre, review, rating string) (types.Record, error) {
	return w.mirror.Add(ctx, types.Candidate{
		Title:  title,
		Genre:  genre,
		Review: review,
		Rating: types.ParseRating(rating),
	})
}

// ToggleWatched flips the watched flag of id.
func (w *Watchlist) ToggleWatched(ctx context.Context, id string) (types.Record, error) {
	return w.mirror.ToggleWatched(ctx, id)
}

// UpdateRecord applies a partial update to id.
func (w *Watchlist) UpdateRecord(ctx context.Context, id string, changes types.Changes) (types.Record, error) {
	return w.mirror.Update(ctx, id, changes)
}

// RemoveRecord deletes id.
func (w *Watchlist) RemoveRecord(ctx context.Context, id string) error {
	return w.mirror.Remove(ctx, id)
}

// PosterURL looks up a poster for the title of id. An empty URL with a nil
// error means no poster was found.
func (w *Watchlist) PosterURL(ctx context.Context, id string) (string, error) {
	r, err := w.Get(id)
	if err != nil {
		return "", err
	}
	return w.posters.Lookup(ctx, r.Title)
}

// Export writes the snapshot to out as JSON Lines.
func (w *Watchlist) Export(out io.Writer) error {
	return jsonl.Write(out, w.mirror.Snapshot())
}

// ExportFile writes the snapshot to path atomically.
func (w *Watchlist) ExportFile(path string) error {
	return jsonl.WriteFile(path, w.mirror.Snapshot())
}

// Import creates every record read from in. Malformed lines are skipped.
// See ImportRecords for the rest.
func (w *Watchlist) Import(ctx context.Context, in io.Reader) (int, error) {
	recs, err := jsonl.Read(in)
	if err != nil {
		return 0, err
	}
	return w.ImportRecords(ctx, recs)
}

// ImportRecords creates each record with a single store write, watched flag
// included. Records whose id is already present or whose title is blank are
// skipped. It returns the number of records created and stops at the first
// store failure.
func (w *Watchlist) ImportRecords(ctx context.Context, recs []types.Record) (int, error) {
	n := 0
	for _, r := range recs {
		_, err := w.mirror.Restore(ctx, r)
		switch {
		case errors.Is(err, types.ErrDuplicateID), errors.Is(err, types.ErrEmptyTitle):
			w.log.WithField("id", r.ID).WithError(err).Info("import skipped record")
			continue
		case err != nil:
			return n, err
		}
		n++
	}
	return n, nil
}

// Close releases the store.
func (w *Watchlist) Close() error {
	return w.store.Close()
}
