package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/source"
	"github.com/lysyi3m/lawnmap/app/tasks"
	"github.com/lysyi3m/lawnmap/app/view"
)

const testAPIKey = "test-key"

const remoteCollection = `{"type":"FeatureCollection","features":[
  {"type":"Feature","geometry":{"type":"Point","coordinates":[17.64,59.86]},
   "properties":{"id":"osm/1","name":"Uppsala Robot, AB","link":"https://robot.example","addr":{"street":"Gatan","housenumber":"1","postcode":"75320","city":"Uppsala"}}},
  {"type":"Feature","geometry":null,"properties":{"id":"osm/2","link":"https://www.husqvarna.example"}},
  {"type":"Feature","geometry":null,"properties":{"name":"No id"}}
]}`

type fakePlaces struct {
	places   []database.Place
	upserted []database.Place
	err      error
}

func (f *fakePlaces) UpsertPlace(ctx context.Context, p database.Place) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakePlaces) GetPlaces(ctx context.Context, limit int) ([]database.Place, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.places) > limit {
		return f.places[:limit], nil
	}
	return f.places, nil
}

func (f *fakePlaces) GetPlaceCount(ctx context.Context) (int, error) {
	return len(f.places), f.err
}

type fakeLeads struct {
	leads []database.Lead
	err   error
}

func (f *fakeLeads) CreateLead(ctx context.Context, l database.Lead) error {
	if f.err != nil {
		return f.err
	}
	f.leads = append(f.leads, l)
	return nil
}

type fakeProposals struct {
	proposals []database.Proposal
	err       error
}

func (f *fakeProposals) CreateProposal(ctx context.Context, p database.Proposal) error {
	if f.err != nil {
		return f.err
	}
	f.proposals = append(f.proposals, p)
	return nil
}

type fakeEvents struct {
	events []database.Event
}

func (f *fakeEvents) GetEvents(ctx context.Context, limit int) ([]database.Event, error) {
	return f.events, nil
}

type fakeSource struct {
	data []byte
	err  error
}

func (f *fakeSource) Name() string { return "remote" }

func (f *fakeSource) Fetch(ctx context.Context) ([]byte, error) {
	return f.data, f.err
}

type fakeScheduler struct {
	enqueued []tasks.TaskInterface
	err      error
}

func (f *fakeScheduler) Start() {}

func (f *fakeScheduler) Stop() {}

func (f *fakeScheduler) Register(tasks.Job) {}

func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	dir       *view.Directory
	places    *fakePlaces
	leads     *fakeLeads
	proposals *fakeProposals
	events    *fakeEvents
	remote    *fakeSource
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := view.NewDirectory(catalog.DefaultCategories())
	dir.Store().LoadItems([]catalog.Item{
		{ID: "1", Name: "Kafé Skogen", Categories: []string{"robot_mower_seller"}, Lat: 59.33, Lng: 18.06, Link: "https://example.com/shop"},
		{ID: "2", Name: "Affär", Categories: []string{"robot_mower_seller"}, Lat: 57.70, Lng: 11.97, Link: "https://example.com/shop/"},
		{ID: "3", Name: "Kaffebönan", Categories: []string{"camp_site"}, Lat: 55.60, Lng: 13.00},
	})

	registry := view.NewRegistry(dir)
	registry.SetDebounce(0)

	env := &testEnv{
		dir:       dir,
		places:    &fakePlaces{},
		leads:     &fakeLeads{},
		proposals: &fakeProposals{},
		events:    &fakeEvents{},
		remote:    &fakeSource{data: []byte(remoteCollection)},
		scheduler: &fakeScheduler{},
	}

	handler := NewHandler(Deps{
		Directory:  dir,
		Sessions:   registry,
		Catalog:    source.NewChain(env.remote),
		Remote:     env.remote,
		Places:     env.places,
		Leads:      env.leads,
		Proposals:  env.proposals,
		Events:     env.events,
		Scheduler:  env.scheduler,
		SeedSecret: "s3cret",
		PlacesFile: t.TempDir() + "/missing-places.json",
	})
	env.router = NewServer(handler, ServerOptions{APIAccessKey: testAPIKey})
	return env
}

func (e *testEnv) do(method, path string, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	cat := body["catalog"].(map[string]any)
	assert.Equal(t, float64(3), cat["items"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestGetData(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/data?kind=places", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no rows and no file")

	lat, lon := 59.3, 18.0
	env.places.places = []database.Place{{ID: "p1", Name: "Butik", Lat: &lat, Lon: &lon}}
	w = env.do(http.MethodGet, "/api/data?kind=places", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"p1"`)

	env.events.events = []database.Event{{ID: "e1", Name: "Demodag", Location: "Uppsala"}}
	w = env.do(http.MethodGet, "/api/data?kind=events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Demodag"`)
}

func TestListings(t *testing.T) {
	env := newTestEnv(t)
	env.places.places = []database.Place{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}

	w := env.do(http.MethodGet, "/api/listings", "")
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	assert.Len(t, items, 2)

	w = env.do(http.MethodPost, "/api/listings", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestSearchPlaces(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/places?q=KAF", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].(map[string]any)["id"])
	assert.Equal(t, "3", items[1].(map[string]any)["id"])
	assert.Equal(t, "2 platser", body["header"])

	w = env.do(http.MethodGet, "/api/places?cats=camp_site", "")
	items = decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Camping", items[0].(map[string]any)["labels"].([]any)[0])

	w = env.do(http.MethodGet, "/api/places?cats=", "")
	assert.Empty(t, decode(t, w)["items"])

	w = env.do(http.MethodGet, "/api/places?dupes=1", "")
	items = decode(t, w)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, true, items[0].(map[string]any)["duplicate"])

	w = env.do(http.MethodGet, "/api/places?lat=55.6&lon=13.0", "")
	body = decode(t, w)
	items = body["items"].([]any)
	assert.Equal(t, "3", items[0].(map[string]any)["id"])
	assert.Contains(t, items[0].(map[string]any), "distance_km")
	assert.True(t, strings.HasSuffix(body["header"].(string), "sorterat efter avstånd"))

	w = env.do(http.MethodGet, "/api/places?lat=abc&lon=13", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFilterQuery_RejectsInvalidPosition(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		query string
	}{
		{"nan latitude", "lat=NaN&lon=18"},
		{"infinite latitude", "lat=Inf&lon=18"},
		{"negative infinity longitude", "lat=59&lon=-Inf"},
		{"latitude out of range", "lat=91&lon=18"},
		{"longitude out of range", "lat=59&lon=181"},
		{"latitude only", "lat=59"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/api/places?", "/api/view?"} {
				w := env.do(http.MethodGet, path+tt.query, "")
				assert.Equal(t, http.StatusBadRequest, w.Code, path+tt.query)
				assert.Contains(t, decode(t, w), "error")
			}
		})
	}
}

func TestGetPlace(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/places/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Kafé Skogen", body["name"])
	assert.Equal(t, "#2c7fb8", body["color"])
	assert.Equal(t, "example.com/shop", body["host"])

	w = env.do(http.MethodGet, "/api/places/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceQR(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/places/1/qr.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = env.do(http.MethodGet, "/api/places/3/qr.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no link to encode")

	w = env.do(http.MethodGet, "/api/places/1/qr.png?size=5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetView(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/view?q=kaf&width=600", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap view.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, view.ModeList, snap.Layout)
	assert.Len(t, snap.Rows, 2)
	assert.Len(t, snap.Markers, 2)
	assert.Contains(t, snap.ListHTML, `<span class="hl">Kaf</span>`)

	w = env.do(http.MethodGet, "/api/view?width=wide", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/sessions", `{"width":700}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var snap view.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.SessionID)
	assert.Equal(t, view.ModeList, snap.Layout)
	assert.Len(t, snap.Rows, 3)

	base := "/api/sessions/" + snap.SessionID

	w = env.do(http.MethodPatch, base, `{"query":"kaf","flush_search":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Rows, 2)

	w = env.do(http.MethodPost, base+"/list/3/click", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, view.ModeMap, snap.Layout)
	assert.Equal(t, "3", snap.Details.ItemID)
	assert.Equal(t, "3", snap.Map.OpenPopup)

	w = env.do(http.MethodPost, base+"/markers/2/click", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "item 2 is filtered out")

	w = env.do(http.MethodPatch, base, `{"layout":"grid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPatch, base, `{"lat":55.6}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateSession_RejectedRequestChangesNothing(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/sessions", `{"width":1200}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var snap view.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, "3 platser", snap.Header)
	base := "/api/sessions/" + snap.SessionID

	bodies := []string{
		`{"categories":["camp_site"],"lat":59.3}`,
		`{"duplicates_only":true,"layout":"grid"}`,
		`{"query":"kaf","flush_search":true,"lat":1e3,"lon":18}`,
	}
	for _, body := range bodies {
		w = env.do(http.MethodPatch, base, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w = env.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "3 platser", snap.Header)
	assert.Equal(t, view.ModeBoth, snap.Layout)
	assert.Nil(t, snap.Filters.UserPosition)
	assert.False(t, snap.Filters.DuplicatesOnly)
	assert.Empty(t, snap.Filters.Query)
}

func TestSellers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/sellers", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["rows"], 2, "remote fallback keeps features with an id")

	w = env.do(http.MethodGet, "/api/sellers?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,website,address,street,housenumber,postcode,city,lat,lon", lines[0])
	assert.Equal(t, `osm/1,"Uppsala Robot, AB",https://robot.example,,Gatan,1,75320,Uppsala,59.86,17.64`, lines[1])

	lat := 1.5
	env.places.places = []database.Place{{ID: "db1", Name: "Från databasen", Lat: &lat}}
	w = env.do(http.MethodGet, "/api/sellers?format=CSV", "")
	assert.Contains(t, w.Body.String(), "db1,Från databasen,,,,,,,1.5,\n")

	env.places.places = nil
	env.remote.err = errors.New("offline")
	w = env.do(http.MethodGet, "/api/sellers", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"not_found"}`, w.Body.String())
}

func TestSeed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/admin/seed", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/admin/seed?secret=wrong", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/admin/seed?secret=s3cret", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"inserted":2}`, w.Body.String())
	require.Len(t, env.places.upserted, 2)
	assert.Equal(t, "husqvarna.example", env.places.upserted[1].Name, "missing names are repaired from the host")
	assert.Len(t, env.scheduler.enqueued, 1)

	env.remote.err = errors.New("upstream down")
	w = env.do(http.MethodGet, "/api/admin/seed?secret=s3cret", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"fetch_failed"}`, w.Body.String())
}

func TestLeads(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/leads", `{"name":"Anna","email":"anna@example.com","place_id":"1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	require.Len(t, env.leads.leads, 1)
	assert.Equal(t, "Anna", env.leads.leads[0].Name)
	assert.Equal(t, "1", env.leads.leads[0].PlaceID)

	env.leads.err = errors.New("disk full")
	w = env.do(http.MethodPost, "/api/leads", `not json`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	env.leads.err = nil
	w = env.do(http.MethodPost, "/api/leads", `{"message":"`+strings.Repeat("a", maxFormBody)+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.leads.leads, 2)
	assert.JSONEq(t, `{}`, string(env.leads.leads[1].Payload), "an unreadable body is stored as an empty payload")
}

func TestProposals(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/proposals", `{"title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"missing_fields"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/proposals", `{"title":"Service","website":"https://s.example","price_from":"1990 kr","categories":"service, robot"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["id"])

	require.Len(t, env.proposals.proposals, 1)
	p := env.proposals.proposals[0]
	require.NotNil(t, p.PriceFrom)
	assert.Equal(t, 1990, *p.PriceFrom)
	assert.Equal(t, []string{"service", "robot"}, p.Categories)

	w = env.do(http.MethodPost, "/api/proposals", `{"title":"X","website":"https://x.example","price_from":"gratis"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.proposals.proposals[1].PriceFrom)

	w = env.do(http.MethodPost, "/api/proposals", `{"title":"X",`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"invalid_body"}`, w.Body.String())
	assert.Len(t, env.proposals.proposals, 2)

	w = env.do(http.MethodPost, "/api/proposals", `{"title":"X","website":"https://x.example","description":"`+strings.Repeat("a", maxFormBody)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "oversized body")
	assert.Len(t, env.proposals.proposals, 2)

	env.proposals.err = errors.New("db down")
	w = env.do(http.MethodPost, "/api/proposals", `{"title":"X","website":"https://x.example"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"persist_failed"}`, w.Body.String())
}

func TestReloadRequiresKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/admin/reload", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/admin/reload", "", "X-API-Key", "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/admin/reload", "", "Authorization", "Bearer "+testAPIKey)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, env.scheduler.enqueued, 1)
	assert.Equal(t, tasks.TaskTypeRefreshCatalog, env.scheduler.enqueued[0].GetType())

	env.scheduler.err = errors.New("task queue is full")
	w = env.do(http.MethodPost, "/api/admin/reload", "", "X-API-Key", testAPIKey)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   any
		want *int
	}{
		{nil, nil},
		{"", nil},
		{"abc", nil},
		{"42", intPtr(42)},
		{"  7 kr", intPtr(7)},
		{float64(1500), intPtr(1500)},
		{"12.9", intPtr(12)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parsePrice(tc.in), "input %v", tc.in)
	}
}

func intPtr(n int) *int {
	return &n
}
