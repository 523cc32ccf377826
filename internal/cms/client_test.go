package cms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventAccessParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/42/access", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"title": "Tuesday Night Ride",
			"public_release_date": "2026-06-01T18:00:00Z",
			"is_flinta_only": true,
			"workshop_capacity": 10,
			"guide_counts": {"mellow": 2}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit", time.Second, nil)
	ea, err := c.EventAccess(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Tuesday Night Ride", ea.Title)
	require.NotNil(t, ea.PublicReleaseDate)
	assert.Equal(t, time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC), ea.PublicReleaseDate.UTC())
	assert.True(t, ea.IsFlintaOnly)
	require.NotNil(t, ea.WorkshopCapacity)
	assert.Equal(t, 10, *ea.WorkshopCapacity)
	assert.Equal(t, map[string]int{"mellow": 2}, ea.GuideCounts)
}

func TestEventAccessInvalidReleaseDateMeansPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "Ride", "public_release_date": "soon"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	ea, err := c.EventAccess(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, ea.PublicReleaseDate)
	assert.NotNil(t, ea.GuideCounts)
}

func TestEventAccessNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	_, err := c.EventAccess(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventAccessRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"title": "Ride"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	ea, err := c.EventAccess(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ride", ea.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEventAccessUnavailableAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	_, err := c.EventAccess(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEventAccessUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond, nil)
	_, err := c.EventAccess(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEventTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "Kiez Loop"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	title, err := c.EventTitle(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Kiez Loop", title)
}
