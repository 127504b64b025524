package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/database"
)

const remoteCollection = `{"type":"FeatureCollection","features":[
  {"type":"Feature","geometry":{"type":"Point","coordinates":[18.06,59.33]},
   "properties":{"id":"node/1","name":"(namnlös)","link":"https://www.robot.example/boka","categories":["robot_mower_seller"],
     "addr":{"street":"Storgatan","housenumber":"1","city":"Stockholm"}}},
  {"type":"Feature","geometry":{"type":"Point"},"properties":{"id":"node/2","name":"No coords"}},
  {"type":"Feature","geometry":{"type":"Point","coordinates":[11.9,57.7]},"properties":{"name":"No id"}}
]}`

type fakeSource struct {
	name  string
	data  []byte
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakePlaces struct {
	places   []database.Place
	err      error
	upserted []database.Place
}

func (f *fakePlaces) GetPlaces(ctx context.Context, limit int) ([]database.Place, error) {
	return f.places, f.err
}

func (f *fakePlaces) UpsertPlace(ctx context.Context, p database.Place) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func TestChain_FirstSuccessWins(t *testing.T) {
	db := &fakeSource{name: "database", err: ErrEmptyCatalog}
	file := &fakeSource{name: "file", data: []byte(`{"features":[]}`)}
	remote := &fakeSource{name: "remote", data: []byte(`{}`)}

	result, err := NewChain(db, file, remote).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file", result.Source)
	assert.Equal(t, `{"features":[]}`, string(result.Data))
	assert.Equal(t, 1, db.calls)
	assert.Equal(t, 0, remote.calls, "later sources must not be tried after a success")
}

func TestChain_AllFail(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain(
		&fakeSource{name: "database", err: ErrEmptyCatalog},
		&fakeSource{name: "file", err: boom},
	)

	_, err := chain.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"database", "file"}, chain.Sources())
}

func TestChain_NoRetry(t *testing.T) {
	failing := &fakeSource{name: "file", err: errors.New("missing")}

	_, err := NewChain(failing).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
}

func TestChain_InvalidPayloadFallsThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[`), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(remoteCollection))
	}))
	defer server.Close()

	result, err := NewChain(
		NewFileSource(path),
		NewRemoteSource(server.URL, server.Client(), ""),
	).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote", result.Source)
	assert.Equal(t, remoteCollection, string(result.Data))
}

func TestChain_InvalidPayloadEverywhere(t *testing.T) {
	chain := NewChain(
		&fakeSource{name: "file", data: []byte(`not json`)},
		&fakeSource{name: "remote", data: []byte(`{"type":"FeatureCollection"}`)},
	)

	_, err := chain.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrInvalidCollection)
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = readLimited(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.geojson")
	require.NoError(t, os.WriteFile(path, []byte(remoteCollection), 0644))

	data, err := NewFileSource(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remoteCollection, string(data))

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.geojson")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestRemoteSource(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(remoteCollection))
	}))
	defer server.Close()

	data, err := NewRemoteSource(server.URL+"/catalog.geojson", server.Client(), "Lawnmap-Test/1.0").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remoteCollection, string(data))
	assert.Equal(t, "Lawnmap-Test/1.0", gotUA)

	_, err = NewRemoteSource(server.URL+"/missing", server.Client(), "").Fetch(context.Background())
	assert.Error(t, err)
}

func TestDatabaseSource_EmptyFallsThrough(t *testing.T) {
	src := NewDatabaseSource(&fakePlaces{}, time.UTC)

	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestDatabaseSource_RendersCollection(t *testing.T) {
	lat, lon := 59.33, 18.06
	linkOK := true
	places := &fakePlaces{places: []database.Place{
		{ID: "1", Name: "Open shop", Website: "https://a.example", Lat: &lat, Lon: &lon,
			Categories: []string{"robot_mower_seller"}, OpeningHours: "24/7", LinkOK: &linkOK, City: "Stockholm"},
		{ID: "2", Name: "Nowhere"},
	}}

	src := NewDatabaseSource(places, time.UTC)
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)

	items, stats, err := catalog.DecodeFeatures(data)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Skipped)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "1", item.ID)
	assert.Equal(t, "https://a.example", item.Link)
	require.NotNil(t, item.OpenNow)
	assert.True(t, *item.OpenNow)
	require.NotNil(t, item.LinkOK)
	assert.True(t, *item.LinkOK)
	assert.Equal(t, "Stockholm", item.Addr.City)
	assert.Equal(t, "Stockholm", item.Address)
}

func TestSeedPlaces(t *testing.T) {
	repo := &fakePlaces{}

	inserted, err := SeedPlaces(context.Background(), []byte(remoteCollection), repo)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	require.Len(t, repo.upserted, 2)

	first := repo.upserted[0]
	assert.Equal(t, "node/1", first.ID)
	assert.Equal(t, "Robot Mower Seller – robot.example", first.Name)
	assert.True(t, first.Bookable, "booking path should mark the place bookable")
	assert.Equal(t, "Storgatan", first.Street)
	require.NotNil(t, first.Lat)
	assert.Equal(t, 59.33, *first.Lat)

	second := repo.upserted[1]
	assert.Nil(t, second.Lat)
	assert.Nil(t, second.Lon)
}

func TestSeedPlaces_InvalidEnvelope(t *testing.T) {
	_, err := SeedPlaces(context.Background(), []byte(`{"type":"FeatureCollection"}`), &fakePlaces{})
	assert.ErrorIs(t, err, catalog.ErrInvalidCollection)
}
