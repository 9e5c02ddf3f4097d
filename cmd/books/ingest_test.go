package books

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/cover"
	"github.com/lepinkainen/bookseed/internal/datastore"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	connectErr error
	insertErr  error
	table      string
	columns    []string
	inserted   []map[string]any
	schemas    int
	closed     bool
}

func (s *fakeStore) Connect(context.Context) error { return s.connectErr }

func (s *fakeStore) CreateTable(context.Context, string) error {
	s.schemas++
	return nil
}

func (s *fakeStore) BatchInsert(_ context.Context, table string, columns []string, records []map[string]any) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.table = table
	s.columns = columns
	s.inserted = append(s.inserted, records...)
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func fakeOpener(store *fakeStore, calls *int) StoreOpener {
	return func(config.DatabaseConfig) (datastore.Store, error) {
		if calls != nil {
			*calls++
		}
		return store, nil
	}
}

func coverServer(t *testing.T) *httptest.Server {
	t.Helper()

	data := testutil.PNGBytes(t, 32, 48)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func bookRows(n int, thumbnail string) [][]string {
	titles := []string{"Dune", "Emma", "Gilead", "Beloved", "Ulysses", "Middlemarch"}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		isbn := "97800000000" + string(rune('0'+i/10)) + string(rune('0'+i%10))
		rows[i] = []string{isbn, "", titles[i%len(titles)], "Author " + titles[i%len(titles)], thumbnail, "Plain description", "4.0", "1999"}
	}
	return rows
}

func newFakeImporter(t *testing.T, cfg *config.Config, store *fakeStore, calls *int) *Importer {
	t.Helper()
	resolver := &fakeResolver{result: cover.Result{Path: "covers/x.png", Status: cover.StatusDownloaded}}
	return NewImporter(cfg, NewTransformer(resolver, cfg, fixedRand{v: 2}),
		WithStoreOpener(fakeOpener(store, calls)),
		WithRunID("test-run"))
}

func TestIngest_EndToEnd(t *testing.T) {
	env := testutil.NewTestEnv(t)
	server := coverServer(t)
	cfg := testutil.NewTestConfig(t, env)

	path := env.WriteCSV("books.csv", testutil.BookColumns, [][]string{
		{"9780000000001", "0000000001", "First Book", "A. Writer", server.URL + "/1.png", "One", "3.9", "2001"},
		{"9780000000002", "0000000002", "Second Book", "B. Writer; C. Writer", server.URL + "/2.png", `Two \"quoted\"`, "4.1", "2002.0"},
		{"9780000000003", "0000000003", "Third Book", "", server.URL + "/3.png", "Three", "", ""},
	})

	im := NewImporter(cfg, NewTransformer(cover.New(cfg.Covers), cfg, nil))
	summary, err := im.Ingest(context.Background(), path, 1, 10)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Iterations)
	assert.Equal(t, 3, summary.NextOffset)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.NullImages.Len())
	assert.Equal(t, 0, summary.BadDescriptions.Len())

	db, err := sql.Open("sqlite", cfg.Database.Path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT isbn13, author, image_url, description, rating, published_year, inventory_quantity FROM books ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	type dbRow struct {
		isbn, author, image, description string
		rating                            sql.NullFloat64
		year                              sql.NullInt64
		qty                               int
	}
	var got []dbRow
	for rows.Next() {
		var r dbRow
		require.NoError(t, rows.Scan(&r.isbn, &r.author, &r.image, &r.description, &r.rating, &r.year, &r.qty))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "9780000000002", got[0].isbn)
	assert.Equal(t, "B. Writer", got[0].author)
	assert.Equal(t, `Two "quoted"`, got[0].description)
	assert.Equal(t, 4.1, got[0].rating.Float64)
	assert.Equal(t, int64(2002), got[0].year.Int64)
	assert.Equal(t, env.Path("covers", "Second_Book_cover_image.png"), got[0].image)

	assert.Equal(t, "9780000000003", got[1].isbn)
	assert.Equal(t, UnknownAuthor, got[1].author)
	assert.False(t, got[1].rating.Valid)
	assert.False(t, got[1].year.Valid)

	for _, r := range got {
		assert.GreaterOrEqual(t, r.qty, 4)
		assert.LessOrEqual(t, r.qty, 12)
		w, h := testutil.ImageSize(t, r.image)
		assert.Equal(t, 190, w)
		assert.Equal(t, 231, h)
	}

	assert.False(t, env.FileExists("covers/First_Book_cover_image.png"))
}

func TestIngest_MaxIterations(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(6, "http://covers/x.png"))

	store := &fakeStore{}
	summary, err := newFakeImporter(t, cfg, store, nil).Ingest(context.Background(), path, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Iterations)
	assert.Equal(t, 5, summary.NextOffset)
	require.Len(t, store.inserted, 3)
	assert.Equal(t, "9780000000002", store.inserted[0]["isbn13"])
	assert.Equal(t, "9780000000004", store.inserted[2]["isbn13"])
	assert.Equal(t, datastore.BookColumns, store.columns)
	assert.Equal(t, "books", store.table)
	assert.Equal(t, 1, store.schemas)
	assert.True(t, store.closed)
}

func TestIngest_NegativeOffsetIsZero(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(3, "http://covers/x.png"))

	neg := &fakeStore{}
	negSummary, err := newFakeImporter(t, cfg, neg, nil).Ingest(context.Background(), path, -5, 2)
	require.NoError(t, err)

	zero := &fakeStore{}
	zeroSummary, err := newFakeImporter(t, cfg, zero, nil).Ingest(context.Background(), path, 0, 2)
	require.NoError(t, err)

	assert.Equal(t, zeroSummary.NextOffset, negSummary.NextOffset)
	assert.Equal(t, zeroSummary.Skipped, negSummary.Skipped)
	assert.Equal(t, zero.inserted, neg.inserted)
}

func TestIngest_DefaultIterationCap(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(55, "http://covers/x.png"))

	store := &fakeStore{}
	summary, err := newFakeImporter(t, cfg, store, nil).Ingest(context.Background(), path, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultMaxIterations, summary.Iterations)
	assert.Len(t, store.inserted, config.DefaultMaxIterations)
}

func TestIngest_OffsetPastEnd(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(2, ""))

	store := &fakeStore{}
	summary, err := newFakeImporter(t, cfg, store, nil).Ingest(context.Background(), path, 10, 5)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Iterations)
	assert.Equal(t, 2, summary.NextOffset)
	assert.Empty(t, store.inserted)
}

func TestIngest_Watchlists(t *testing.T) {
	env := testutil.NewTestEnv(t)
	server := coverServer(t)
	cfg := testutil.NewTestConfig(t, env)

	path := env.WriteCSV("books.csv", testutil.BookColumns, [][]string{
		{"9780000000001", "", "No Cover", "A", "", "Fine", "", ""},
		{"9780000000002", "", "Dead Link", "B", server.URL + "/missing.png", "Fine", "", ""},
		{"9780000000003", "", "Bad Text", "C", server.URL + "/ok.png", `Broken \u12`, "", ""},
	})

	store := &fakeStore{}
	im := NewImporter(cfg, NewTransformer(cover.New(cfg.Covers), cfg, nil), WithStoreOpener(fakeOpener(store, nil)))
	summary, err := im.Ingest(context.Background(), path, 0, 10)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"9780000000001": "No Cover",
		"9780000000002": "Dead Link",
	}, summary.NullImages.Map())
	assert.Equal(t, map[string]string{"9780000000003": "Bad Text"}, summary.BadDescriptions.Map())

	require.Len(t, store.inserted, 3)
	assert.Nil(t, store.inserted[0]["image_url"])
	assert.Nil(t, store.inserted[1]["image_url"])
	assert.Equal(t, `Broken \u12`, store.inserted[2]["description"])
}

func TestIngest_FallbackKeepsWatchlistEmpty(t *testing.T) {
	env := testutil.NewTestEnv(t)
	server := coverServer(t)
	cfg := testutil.NewTestConfig(t, env, testutil.WithFallback("covers/not_available.png"))

	path := env.WriteCSV("books.csv", testutil.BookColumns, [][]string{
		{"9780000000002", "", "Dead Link", "B", server.URL + "/missing.png", "Fine", "", ""},
	})

	store := &fakeStore{}
	im := NewImporter(cfg, NewTransformer(cover.New(cfg.Covers), cfg, nil), WithStoreOpener(fakeOpener(store, nil)))
	summary, err := im.Ingest(context.Background(), path, 0, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.NullImages.Len())
	assert.Equal(t, "covers/not_available.png", store.inserted[0]["image_url"])
}

func TestIngest_BareQuotesAreImported(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)

	env.WriteFileString("books.csv",
		"isbn13,isbn10,title,authors,thumbnail,description,average_rating,published_year\n"+
			"9780000000001,,One,A,,d,,\n"+
			"9780000000002,,The \"Best\" Book,B,,Called \"the best\",,\n"+
			"9780000000003,,Three,C,,d,,\n")

	store := &fakeStore{}
	summary, err := newFakeImporter(t, cfg, store, nil).Ingest(context.Background(), env.Path("books.csv"), 0, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Iterations)
	assert.Equal(t, 3, summary.NextOffset)
	require.Len(t, store.inserted, 3)
	assert.Equal(t, `The "Best" Book`, store.inserted[1]["title"])
	assert.Equal(t, `Called "the best"`, store.inserted[1]["description"])
}

// slowResolver takes a fixed time per cover to make row pacing measurable.
type slowResolver struct {
	delay time.Duration
}

func (r slowResolver) Resolve(_ context.Context, _ cover.Request) (cover.Result, error) {
	time.Sleep(r.delay)
	return cover.Result{Status: cover.StatusUnresolved}, nil
}

func TestIngest_RowDelayIsAPauseBetweenRows(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	cfg.RowDelay = 40 * time.Millisecond
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(3, "http://covers/x.png"))

	im := NewImporter(cfg, NewTransformer(slowResolver{delay: 60 * time.Millisecond}, cfg, nil),
		WithStoreOpener(fakeOpener(&fakeStore{}, nil)))

	start := time.Now()
	summary, err := im.Ingest(context.Background(), path, 0, 10)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Iterations)
	// three rows of work plus two full pauses; no pause after the last row
	assert.GreaterOrEqual(t, elapsed, 3*60*time.Millisecond+2*40*time.Millisecond)
	assert.Less(t, elapsed, 3*60*time.Millisecond+3*40*time.Millisecond+time.Second)
}

func TestIngest_CancelledDuringRowDelay(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	cfg.RowDelay = time.Hour
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(3, ""))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	store := &fakeStore{}
	summary, err := newFakeImporter(t, cfg, store, nil).Ingest(ctx, path, 1, 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, summary.NextOffset)
	assert.Empty(t, store.inserted)
}

func TestIngest_ConfigErrors(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("empty.csv", "")
	env.WriteFileString("partial.csv", "isbn13,title\n1,x\n")
	env.MkdirAll("dir.csv")
	valid := env.WriteCSV("valid.csv", testutil.BookColumns, bookRows(1, ""))

	testCases := []struct {
		name   string
		path   string
		mutate func(cfg *config.Config)
	}{
		{name: "no path", path: ""},
		{name: "missing file", path: env.Path("nope.csv")},
		{name: "directory", path: env.Path("dir.csv")},
		{name: "empty file", path: env.Path("empty.csv")},
		{name: "missing columns", path: env.Path("partial.csv")},
		{name: "missing database config", path: valid, mutate: func(cfg *config.Config) { cfg.Database.Driver = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testutil.NewTestConfig(t, env)
			if tc.mutate != nil {
				tc.mutate(cfg)
			}

			calls := 0
			store := &fakeStore{}
			_, err := newFakeImporter(t, cfg, store, &calls).Ingest(context.Background(), tc.path, 0, 10)

			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err), "got %T: %v", err, err)
			assert.Zero(t, calls)
		})
	}
}

func TestIngest_StorageErrors(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(3, ""))

	t.Run("connect", func(t *testing.T) {
		store := &fakeStore{connectErr: assert.AnError}
		summary, err := newFakeImporter(t, cfg, store, nil).Ingest(context.Background(), path, 1, 10)

		require.Error(t, err)
		assert.True(t, errors.IsStorageError(err))
		assert.Equal(t, 1, summary.NextOffset)
		assert.Zero(t, summary.Iterations)
		assert.True(t, store.closed)
	})

	t.Run("insert", func(t *testing.T) {
		store := &fakeStore{insertErr: assert.AnError}
		summary, err := newFakeImporter(t, cfg, store, nil).Ingest(context.Background(), path, 1, 10)

		require.Error(t, err)
		assert.True(t, errors.IsStorageError(err))
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, summary.NextOffset)
		assert.Equal(t, 2, summary.Iterations)
		assert.Zero(t, summary.Inserted)
		assert.True(t, store.closed)
	})
}

func TestIngest_CancelledContextWritesNothing(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(3, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	_, err := newFakeImporter(t, cfg, store, nil).Ingest(ctx, path, 0, 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.inserted)
	assert.True(t, store.closed)
}

func TestIngest_RealSQLiteStore(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env)
	path := env.WriteCSV("books.csv", testutil.BookColumns, bookRows(4, ""))

	resolver := &fakeResolver{err: errors.NewMissingSourceError("x")}
	im := NewImporter(cfg, NewTransformer(resolver, cfg, nil))

	first, err := im.Ingest(context.Background(), path, 0, 2)
	require.NoError(t, err)
	second, err := im.Ingest(context.Background(), path, first.NextOffset, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, second.NextOffset)

	db, err := sql.Open("sqlite", cfg.Database.Path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count, nullImages int
	require.NoError(t, db.QueryRow("SELECT COUNT(*), SUM(image_url IS NULL) FROM books").Scan(&count, &nullImages))
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, nullImages)
}

func TestRun_ExportsWatchlistJSON(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env, testutil.WithWatchlistExport(config.ExportJSON))
	cfg.Input = env.WriteCSV("books.csv", testutil.BookColumns, bookRows(2, ""))

	var stdout bytes.Buffer
	summary, err := Run(context.Background(), cfg, &stdout)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	assert.Contains(t, stdout.String(), `"9780000000000": "Dune"`)
	assert.Contains(t, stdout.String(), `"9780000000001": "Emma"`)
}

func TestRun_ExportsWatchlistTextFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	cfg := testutil.NewTestConfig(t, env, testutil.WithWatchlistExport(config.ExportText))
	cfg.Input = env.WriteCSV("books.csv", testutil.BookColumns, bookRows(1, ""))

	_, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "Isbn: 9780000000000 | Title: Dune\n", env.ReadFileString("watchlists/null_images_watchlist.txt"))
	assert.False(t, env.FileExists("watchlists/bad_descriptions_watchlist.txt"))
}
