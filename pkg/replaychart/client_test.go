package replaychart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	c := NewClient(baseURL + "/")

	if c == nil {
		t.Fatal("expected non-nil client")
	}

	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}

	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestGetChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chart" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"symbol":"ESZ4","timezone":"America/Chicago","version":3,"done":true,
			"bars":[{"time":1730709060,"open":1,"high":2,"low":0.5,"close":1.5,"volume":7}],
			"volume":[{"time":1730709060,"value":7,"color":"#4FFF00"}],
			"style":{"up":"#4FFF00","down":"#FF4976","volume":"#26a69a"}}`)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).GetChart(context.Background())
	if err != nil {
		t.Fatalf("GetChart() returned error: %v", err)
	}
	if got.Symbol != "ESZ4" || got.Version != 3 || !got.Done {
		t.Errorf("GetChart() = %+v", got)
	}
	if len(got.Bars) != 1 || got.Bars[0].Close != 1.5 {
		t.Errorf("Bars = %+v", got.Bars)
	}
	if len(got.Volume) != 1 || got.Volume[0].Color != "#4FFF00" {
		t.Errorf("Volume = %+v", got.Volume)
	}
}

func TestGetBarsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"version":1,"count":0,"bars":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.GetBars(context.Background(), 100, 200); err != nil {
		t.Fatal(err)
	}
	if gotQuery != "from=100&to=200" {
		t.Errorf("query = %q, want %q", gotQuery, "from=100&to=200")
	}

	if _, err := c.GetBars(context.Background(), 0, 0); err != nil {
		t.Fatal(err)
	}
	if gotQuery != "" {
		t.Errorf("query = %q, want empty", gotQuery)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid from \"x\""}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetVolume(context.Background(), 5, 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != http.StatusBadRequest || apiErr.Message != `invalid from "x"` {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"run_id":"r1","symbol":"ESZ4","files":27,"loaded":25,"skipped":2,"bars":900,"subscribers":1,"started_at":"2025-06-11T10:00:00Z"}`)
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL).GetStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.RunID != "r1" || st.Files != 27 || st.Skipped != 2 || st.Bars != 900 || st.Subscribers != 1 {
		t.Errorf("GetStatus() = %+v", st)
	}
}
