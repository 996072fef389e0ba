package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelscraper/pkg/config"
	errs "labelscraper/pkg/errors"
	"labelscraper/pkg/logger"
	"labelscraper/pkg/models"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type fakeAPI struct {
	mu       sync.Mutex
	total    int
	countErr error
	labels   map[int]*models.Label
	failures map[int][]error
	calls    []int
	onFetch  func(id int)
}

func newFakeAPI(total int) *fakeAPI {
	return &fakeAPI{
		total:    total,
		labels:   make(map[int]*models.Label),
		failures: make(map[int][]error),
	}
}

func (f *fakeAPI) CountLabels(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.total, nil
}

func (f *fakeAPI) GetLabel(ctx context.Context, id int) (*models.Label, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	onFetch := f.onFetch
	var queued error
	if q := f.failures[id]; len(q) > 0 {
		queued = q[0]
		f.failures[id] = q[1:]
	}
	label, ok := f.labels[id]
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(id)
	}
	if queued != nil {
		return nil, queued
	}
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, "resource not found")
	}
	copied := *label
	return &copied, nil
}

func (f *fakeAPI) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type fakeStore struct {
	records   []models.ExtractedRecord
	appendErr map[int]error
}

func (s *fakeStore) Cursor() int {
	if len(s.records) == 0 {
		return 0
	}
	return s.records[len(s.records)-1].ID
}

func (s *fakeStore) Append(record models.ExtractedRecord) error {
	if err := s.appendErr[record.ID]; err != nil {
		return err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) IDs() []int {
	ids := make([]int, 0, len(s.records))
	for _, r := range s.records {
		ids = append(ids, r.ID)
	}
	return ids
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Discogs.APIKey = "key"
	cfg.Discogs.APISecret = "secret"
	cfg.Output.File = "labels.json"
	cfg.Scan.Delay = 0
	return cfg
}

func contactLabel(id int) *models.Label {
	return &models.Label{
		ID:          id,
		Name:        "Label " + strconv.Itoa(id),
		ContactInfo: "Contact: label" + strconv.Itoa(id) + "@example.com",
	}
}

func newTestScraper(cfg *config.Config, api LabelAPI, st RecordStore) (*Scraper, *fakeClock, *logger.TestLogger) {
	clock := newFakeClock()
	log := logger.NewTestLogger()
	s := New(cfg, api, st, log, WithSleep(clock.Sleep), WithClock(clock.Now))
	return s, clock, log
}

func TestRunFullScan(t *testing.T) {
	api := newFakeAPI(10)
	for id := 2; id <= 10; id += 2 {
		api.labels[id] = contactLabel(id)
	}
	for id := 1; id <= 9; id += 2 {
		api.labels[id] = &models.Label{ID: id, Name: "No contact"}
	}
	st := &fakeStore{}

	s, _, log := newTestScraper(testConfig(), api, st)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, api.Calls())
	assert.Equal(t, []int{2, 4, 6, 8, 10}, st.IDs())
	assert.Equal(t, Stats{Processed: 10, Written: 5, Skipped: 5}, s.Stats())
	assert.True(t, log.HasMessage("processed label 10 of 10"))
	assert.True(t, log.HasMessage("Label scan complete"))

	record := st.records[0]
	require.NotNil(t, record.Email)
	assert.Equal(t, "label2@example.com", *record.Email)
	require.NotNil(t, record.Name)
	assert.Equal(t, "Label 2", *record.Name)
}

func TestRunTagsLogsWithRunID(t *testing.T) {
	api := newFakeAPI(1)
	api.labels[1] = contactLabel(1)

	s, _, log := newTestScraper(testConfig(), api, &fakeStore{})
	require.NoError(t, s.Run(context.Background()))

	require.NotEqual(t, uuid.Nil, s.RunID())
	messages := log.GetMessages()
	require.NotEmpty(t, messages)
	for _, msg := range messages {
		assert.Equal(t, s.RunID().String(), msg.Fields["run_id"], msg.Message)
	}

	other, _, _ := newTestScraper(testConfig(), api, &fakeStore{})
	assert.NotEqual(t, s.RunID(), other.RunID())
}

func TestRunResumesAfterCursor(t *testing.T) {
	api := newFakeAPI(45)
	for id := 40; id <= 45; id++ {
		api.labels[id] = contactLabel(id)
	}
	st := &fakeStore{records: []models.ExtractedRecord{{ID: 17}, {ID: 42}}}

	s, _, _ := newTestScraper(testConfig(), api, st)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{43, 44, 45}, api.Calls())
	assert.Equal(t, []int{17, 42, 43, 44, 45}, st.IDs())
}

func TestRunStartOffset(t *testing.T) {
	tests := []struct {
		name     string
		cursor   int
		offset   int
		total    int
		expected []int
	}{
		{"offset above cursor wins", 10, 20, 22, []int{20, 21, 22}},
		{"cursor above offset wins", 30, 20, 32, []int{31, 32}},
		{"offset on empty store", 0, 5, 6, []int{5, 6}},
		{"offset beyond total", 0, 50, 40, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(tt.total)
			st := &fakeStore{}
			if tt.cursor > 0 {
				st.records = []models.ExtractedRecord{{ID: tt.cursor}}
			}

			cfg := testConfig()
			cfg.Scan.StartOffset = tt.offset

			s, _, _ := newTestScraper(cfg, api, st)
			require.NoError(t, s.Run(context.Background()))
			assert.Equal(t, tt.expected, api.Calls())
		})
	}
}

func TestRunStep(t *testing.T) {
	api := newFakeAPI(10)
	cfg := testConfig()
	cfg.Scan.Step = 3

	s, _, _ := newTestScraper(cfg, api, &fakeStore{})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{1, 4, 7, 10}, api.Calls())
	assert.Equal(t, 4, s.Stats().Processed)
	assert.Equal(t, 4, s.Stats().FetchFailures)
}

func TestRunNothingToDo(t *testing.T) {
	api := newFakeAPI(40)
	st := &fakeStore{records: []models.ExtractedRecord{{ID: 40}}}

	s, clock, _ := newTestScraper(testConfig(), api, st)
	require.NoError(t, s.Run(context.Background()))

	assert.Empty(t, api.Calls())
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, Stats{}, s.Stats())
}

func TestFetchLabelRateLimitRetry(t *testing.T) {
	api := newFakeAPI(7)
	api.labels[7] = contactLabel(7)
	api.failures[7] = []error{errs.New(errs.ErrorTypeRateLimit, 429, "rate limit exceeded")}

	s, clock, log := newTestScraper(testConfig(), api, &fakeStore{})

	label := s.FetchLabel(context.Background(), 7)
	require.NotNil(t, label)
	assert.Equal(t, 7, label.ID)
	assert.Equal(t, []time.Duration{60 * time.Second}, clock.Sleeps())
	assert.Equal(t, []int{7, 7}, api.Calls())
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.True(t, log.HasMessage("Rate limit reached, backing off"))
}

func TestFetchLabelRateLimitIsUnbounded(t *testing.T) {
	api := newFakeAPI(1)
	api.labels[1] = contactLabel(1)
	for i := 0; i < 30; i++ {
		api.failures[1] = append(api.failures[1], errs.New(errs.ErrorTypeRateLimit, 429, "rate limit exceeded"))
	}

	cfg := testConfig()
	cfg.RateLimit.Wait = 5 * time.Second
	s, clock, _ := newTestScraper(cfg, api, &fakeStore{})

	require.NotNil(t, s.FetchLabel(context.Background(), 1))
	sleeps := clock.Sleeps()
	assert.Len(t, sleeps, 30)
	for _, d := range sleeps {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestFetchLabelOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", errs.New(errs.ErrorTypeServerError, 500, "server error")},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "connection refused")},
		{"parsing", errs.New(errs.ErrorTypeParsing, 200, "failed to parse JSON")},
		{"untyped", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(3)
			api.labels[3] = contactLabel(3)
			api.failures[3] = []error{tt.err}

			s, clock, log := newTestScraper(testConfig(), api, &fakeStore{})

			assert.Nil(t, s.FetchLabel(context.Background(), 3))
			assert.Empty(t, clock.Sleeps())
			assert.Equal(t, []int{3}, api.Calls())
			assert.True(t, log.HasMessage("Error fetching label 3"))
		})
	}
}

func TestFetchLabelCancelledDuringWait(t *testing.T) {
	api := newFakeAPI(1)
	api.failures[1] = []error{errs.New(errs.ErrorTypeRateLimit, 429, "rate limit exceeded")}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(testConfig(), api, &fakeStore{}, logger.NewNopLogger(), WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	assert.Nil(t, s.FetchLabel(ctx, 1))
	assert.Equal(t, []int{1}, api.Calls())
}

func TestRunPacing(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		expected []time.Duration
	}{
		{"fast iterations sleep the remainder", 300 * time.Millisecond, []time.Duration{700 * time.Millisecond, 700 * time.Millisecond, 700 * time.Millisecond}},
		{"slow iterations do not sleep", 2 * time.Second, []time.Duration{}},
		{"exact iterations do not sleep", time.Second, []time.Duration{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(3)
			cfg := testConfig()
			cfg.Scan.Delay = time.Second

			s, clock, _ := newTestScraper(cfg, api, &fakeStore{})
			api.onFetch = func(int) { clock.Advance(tt.elapsed) }

			require.NoError(t, s.Run(context.Background()))
			assert.Equal(t, tt.expected, append([]time.Duration{}, clock.Sleeps()...))
		})
	}
}

func TestRunCountFailureIsFatal(t *testing.T) {
	api := newFakeAPI(0)
	api.countErr = errs.New(errs.ErrorTypeAuth, 401, "authentication failed")

	s, _, log := newTestScraper(testConfig(), api, &fakeStore{})
	err := s.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover label count")
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	assert.Empty(t, api.Calls())
	assert.True(t, log.HasMessage("Error fetching total label count"))
}

func TestRunAppendFailureIsSwallowed(t *testing.T) {
	api := newFakeAPI(3)
	for id := 1; id <= 3; id++ {
		api.labels[id] = contactLabel(id)
	}
	st := &fakeStore{appendErr: map[int]error{2: errors.New("disk full")}}

	s, _, log := newTestScraper(testConfig(), api, st)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, api.Calls())
	assert.Equal(t, []int{1, 3}, st.IDs())
	assert.Equal(t, Stats{Processed: 3, Written: 2, AppendFailures: 1}, s.Stats())
	assert.True(t, log.HasMessage("Error appending result to file"))
}

func TestRunCancelled(t *testing.T) {
	api := newFakeAPI(5)
	for id := 1; id <= 5; id++ {
		api.labels[id] = contactLabel(id)
	}
	st := &fakeStore{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.onFetch = func(id int) {
		if id == 2 {
			cancel()
		}
	}

	s, _, log := newTestScraper(testConfig(), api, st)
	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 2}, api.Calls())
	assert.Equal(t, []int{1, 2}, st.IDs())
	assert.True(t, log.HasMessage("Component stopped"))
}

func TestRunUsesRequestedIDWhenBodyOmitsIt(t *testing.T) {
	api := newFakeAPI(1)
	api.labels[1] = &models.Label{Name: "No id", URLs: []string{"https://x"}}
	st := &fakeStore{}

	s, _, _ := newTestScraper(testConfig(), api, st)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []int{1}, st.IDs())
}

// discogsServer serves a small label catalogue. Label 2 is rate limited on its first request.
func discogsServer(t *testing.T, total int) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	limited := false

	mux := http.NewServeMux()
	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Discogs key=key, secret=secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pagination": {"page": 1, "pages": ` + strconv.Itoa(total) + `, "per_page": 1, "items": ` + strconv.Itoa(total) + `}}`))
	})
	mux.HandleFunc("/labels/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/labels/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		switch id {
		case 1:
			w.Write([]byte(`{"id": 1, "name": "Planet Mu", "contact_info": "mail: info@planet-mu.com\ntel: +44 20 7946 0958", "urls": ["https://planet-mu.com"], "profile": "UK label"}`))
		case 2:
			mu.Lock()
			first := !limited
			limited = true
			mu.Unlock()
			if first {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"id": 2, "name": "Rephlex", "urls": ["https://rephlex.com"]}`))
		case 3:
			w.Write([]byte(`{"id": 3, "name": "Quiet"}`))
		case 5:
			w.Write([]byte(`{"id": 5, "name": "Late", "contact_info": "late@label.org"}`))
		default:
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func readStoreIDs(t *testing.T, path string) []int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []models.ExtractedRecord
	require.NoError(t, json.Unmarshal(data, &records))

	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRunAgainstDiscogsServer(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		t.Run("atomic="+strconv.FormatBool(atomic), func(t *testing.T) {
			server := discogsServer(t, 4)

			cfg := testConfig()
			cfg.Discogs.BaseURL = server.URL
			cfg.Output.File = filepath.Join(t.TempDir(), "labels.json")
			cfg.Output.Atomic = atomic

			clock := newFakeClock()
			s := NewFromConfig(cfg, logger.NewNopLogger(), WithSleep(clock.Sleep), WithClock(clock.Now))
			require.NoError(t, s.Run(context.Background()))

			assert.Equal(t, []int{1, 2}, readStoreIDs(t, cfg.Output.File))
			assert.Equal(t, []time.Duration{60 * time.Second}, clock.Sleeps())
			assert.Equal(t, Stats{Processed: 4, Written: 2, Skipped: 1, FetchFailures: 1}, s.Stats())

			data, err := os.ReadFile(cfg.Output.File)
			require.NoError(t, err)
			var raw []map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &raw))
			assert.Equal(t, "info@planet-mu.com", raw[0]["email"])
			assert.Equal(t, "+44 20 7946 0958", raw[0]["phone"])
			assert.Nil(t, raw[1]["email"])
			assert.Nil(t, raw[1]["profile"])
		})
	}
}

func TestRunResumesFromStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")

	first := discogsServer(t, 2)
	cfg := testConfig()
	cfg.Discogs.BaseURL = first.URL
	cfg.Output.File = path

	clock := newFakeClock()
	require.NoError(t, NewFromConfig(cfg, logger.NewNopLogger(), WithSleep(clock.Sleep), WithClock(clock.Now)).Run(context.Background()))
	assert.Equal(t, []int{1, 2}, readStoreIDs(t, path))

	second := discogsServer(t, 5)
	cfg.Discogs.BaseURL = second.URL

	s := NewFromConfig(cfg, logger.NewNopLogger(), WithSleep(clock.Sleep), WithClock(clock.Now))
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 5}, readStoreIDs(t, path))
	assert.Equal(t, Stats{Processed: 3, Written: 1, Skipped: 1, FetchFailures: 1}, s.Stats())
}
