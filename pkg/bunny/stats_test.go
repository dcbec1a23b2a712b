package bunny

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestTopBandwidth(t *testing.T) {
	zones := []PullZone{
		{ID: 1, Name: "small"},
		{ID: 2, Name: "big"},
		{ID: 3, Name: "medium"},
	}
	bandwidth := map[string]int64{"1": 100, "2": 700, "3": 200}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/pullzone":
			json.NewEncoder(w).Encode(pullZoneList{Items: zones})
		case r.URL.Path == "/statistics":
			id := r.URL.Query().Get("pullZone")
			json.NewEncoder(w).Encode(statsResponse{
				TotalRequestsServed: 10,
				TotalBandwidthUsed:  bandwidth[id],
			})
		case strings.HasPrefix(r.URL.Path, "/pullzone/"):
			json.NewEncoder(w).Encode(PullZone{ID: 1, Name: "ignored"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	entries, err := client.TopBandwidth(context.Background(), 2, from, to)
	if err != nil {
		t.Fatalf("TopBandwidth: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ZoneName != "big" || entries[1].ZoneName != "medium" {
		t.Errorf("order = %s, %s", entries[0].ZoneName, entries[1].ZoneName)
	}
	if entries[0].Percentage != 70 {
		t.Errorf("top percentage = %v, want 70", entries[0].Percentage)
	}
}

func TestTopBandwidth_SkipsFailedZones(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/pullzone":
			json.NewEncoder(w).Encode(pullZoneList{Items: []PullZone{{ID: 1, Name: "ok"}, {ID: 2, Name: "broken"}}})
		case r.URL.Path == "/statistics" && r.URL.Query().Get("pullZone") == "2":
			w.WriteHeader(http.StatusForbidden)
		case r.URL.Path == "/statistics":
			json.NewEncoder(w).Encode(statsResponse{TotalBandwidthUsed: 50})
		default:
			json.NewEncoder(w).Encode(PullZone{ID: 1, Name: "ok"})
		}
	}))

	entries, err := client.TopBandwidth(context.Background(), 0, time.Now().AddDate(0, 0, -1), time.Now())
	if err != nil {
		t.Fatalf("TopBandwidth: %v", err)
	}
	if len(entries) != 1 || entries[0].ZoneName != "ok" {
		t.Fatalf("entries = %+v, want only the healthy zone", entries)
	}
}
