package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActivitiesPaginates(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "1705000000", r.URL.Query().Get("after"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		switch page {
		case "1":
			fmt.Fprint(w, `[{"id":1,"name":"a","type":"Run"},{"id":2,"name":"b","type":"Ride"}]`)
		default:
			fmt.Fprint(w, `[{"id":3,"name":"c","type":"Swim"}]`)
		}
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, HTTPClient: server.Client(), PageSize: 2})
	activities, err := client.ListActivities(context.Background(), "tok", time.Unix(1705000000, 0))
	require.NoError(t, err)
	require.Len(t, activities, 3)
	assert.Equal(t, []string{"1", "2"}, pages)
	assert.Equal(t, "3", activities[2].SourceID())
}

func TestGetActivityDecodesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activities/12345678", r.URL.Path)
		fmt.Fprint(w, `{
			"id": 12345678, "name": "Morning Run", "type": "Run", "distance": 10200,
			"moving_time": 3060, "elapsed_time": 3200, "start_date": "2024-01-15T07:30:00Z",
			"suffer_score": 72, "calories": 680, "start_latlng": [37.7749, -122.4194]
		}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, HTTPClient: server.Client()})
	activity, err := client.GetActivity(context.Background(), "tok", 12345678)
	require.NoError(t, err)
	assert.Equal(t, "Morning Run", activity.Name)
	assert.Equal(t, 3060, activity.MovingTime)
	require.NotNil(t, activity.SufferScore)
	assert.Equal(t, 72.0, *activity.SufferScore)
	assert.Equal(t, []float64{37.7749, -122.4194}, activity.StartLatLng)
}

func TestGetActivityReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Record Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, HTTPClient: server.Client()})
	_, err := client.GetActivity(context.Background(), "tok", 9)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestActivityTypeFallback(t *testing.T) {
	assert.Equal(t, "Run", Activity{Type: "Run", SportType: "TrailRun"}.ActivityType())
	assert.Equal(t, "TrailRun", Activity{SportType: "TrailRun"}.ActivityType())
	assert.Equal(t, "unknown", Activity{}.ActivityType())
}
