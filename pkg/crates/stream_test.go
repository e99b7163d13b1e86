package crates

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/pkgwatch/crates-io-client/internal/testutil"
	"github.com/pkgwatch/crates-io-client/pkg/types"
)

// drain consumes the stream and returns the collected crates.
func drain(t *testing.T, stream *CrateStream) []types.Crate {
	t.Helper()

	var crates []types.Crate
	for stream.Next(context.Background()) {
		crates = append(crates, stream.Crate())
	}
	return crates
}

func TestStreamAllPages(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.ServeCrateListing(25)

	stream := client.CratesStream(types.CratesQuery{PerPage: 10})
	crates := drain(t, stream)

	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(crates) != 25 {
		t.Fatalf("crate count = %d, want 25", len(crates))
	}
	if crates[0].Name != "crate-000" || crates[24].Name != "crate-024" {
		t.Errorf("unexpected boundaries: first %q, last %q", crates[0].Name, crates[24].Name)
	}
	if stream.Total() != 25 {
		t.Errorf("total = %d, want 25", stream.Total())
	}

	// 25 results at 10 per page: the total count makes the third page
	// recognizably the last, no probe for a fourth.
	if got := mock.RequestsFor("/crates"); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}

	if stream.Next(context.Background()) {
		t.Error("Next returned true after exhaustion")
	}
}

func TestStreamFetchesLazily(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.ServeCrateListing(25)

	stream := client.CratesStream(types.CratesQuery{PerPage: 10})
	if mock.RequestsFor("/crates") != 0 {
		t.Fatal("stream construction must not fetch")
	}

	// Consume only the first page and abandon the stream.
	for i := 0; i < 10; i++ {
		if !stream.Next(context.Background()) {
			t.Fatalf("Next returned false at item %d", i)
		}
	}

	if got := mock.RequestsFor("/crates"); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestStreamEmptyResult(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.ServeCrateListing(0)

	stream := client.CratesStream(types.CratesQuery{Search: "no-hits"})
	if stream.Next(context.Background()) {
		t.Error("Next returned true for empty result")
	}
	if err := stream.Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := mock.RequestsFor("/crates"); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestStreamExactPageMultiple(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.ServeCrateListing(20)

	stream := client.CratesStream(types.CratesQuery{PerPage: 10})
	crates := drain(t, stream)

	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(crates) != 20 {
		t.Fatalf("crate count = %d, want 20", len(crates))
	}

	// With the explicit total the stream knows page two is the last even
	// though it came back full.
	if got := mock.RequestsFor("/crates"); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
}

func TestStreamPageHeuristic(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	// No meta.total: the stream must rely on page sizes alone.
	mock.SetHandler("/crates", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		total := 20
		start := (page - 1) * 10
		end := min(start+10, total)
		if start > total {
			start = total
		}

		body := `{"crates": [`
		for i := start; i < end; i++ {
			if i > start {
				body += ","
			}
			body += fmt.Sprintf(`{"id": "crate-%03d", "name": "crate-%03d", "max_version": "1.0.0", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}`, i, i)
		}
		body += `], "meta": {}}`

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, body)
	})

	stream := client.CratesStream(types.CratesQuery{PerPage: 10}, WithPageHeuristic())
	crates := drain(t, stream)

	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(crates) != 20 {
		t.Fatalf("crate count = %d, want 20", len(crates))
	}

	// Both pages came back full, so the heuristic pays one probing request
	// that returns the empty third page.
	if got := mock.RequestsFor("/crates"); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestStreamStartPage(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.ServeCrateListing(25)

	stream := client.CratesStream(types.CratesQuery{PerPage: 10, Page: 2})
	crates := drain(t, stream)

	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(crates) != 15 {
		t.Fatalf("crate count = %d, want 15", len(crates))
	}
	if crates[0].Name != "crate-010" {
		t.Errorf("first crate = %q, want %q", crates[0].Name, "crate-010")
	}

	// The skipped first page still counts against the total, so page three
	// is recognizably the last and no empty fourth page is requested.
	if got := mock.RequestsFor("/crates"); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
}

func TestStreamErrorMidway(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.SetHandler("/crates", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, testutil.ErrorBody("internal server error"))
			return
		}

		body := `{"crates": [`
		for i := 0; i < 10; i++ {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`{"id": "crate-%03d", "name": "crate-%03d", "max_version": "1.0.0", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}`, i, i)
		}
		body += `], "meta": {"total": 25}}`
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, body)
	})

	stream := client.CratesStream(types.CratesQuery{PerPage: 10})
	crates := drain(t, stream)

	if len(crates) != 10 {
		t.Errorf("crate count = %d, want 10 (first page delivered before the failure)", len(crates))
	}
	if KindOf(stream.Err()) != KindAPI {
		t.Errorf("expected api error, got %v", stream.Err())
	}

	// The stream stays finished and the error stays put.
	if stream.Next(context.Background()) {
		t.Error("Next returned true after a failure")
	}
	if KindOf(stream.Err()) != KindAPI {
		t.Errorf("error changed after repeated Next: %v", stream.Err())
	}
}

func TestStreamAllIterator(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.ServeCrateListing(25)

	var count int
	for crate, err := range client.CratesStream(types.CratesQuery{PerPage: 10}).All(context.Background()) {
		if err != nil {
			t.Fatalf("iterator yielded error: %v", err)
		}
		if crate.Name == "" {
			t.Fatal("iterator yielded zero crate without error")
		}
		count++
	}
	if count != 25 {
		t.Errorf("iterated %d crates, want 25", count)
	}
}

func TestStreamAllIteratorYieldsError(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	client := newTestClient(t, mock)

	mock.SetResponse("/crates", testutil.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       testutil.ErrorBody("internal server error"),
	})

	var errs int
	for _, err := range client.CratesStream(types.CratesQuery{}).All(context.Background()) {
		if err == nil {
			t.Fatal("expected only an error from the iterator")
		}
		errs++
	}
	if errs != 1 {
		t.Errorf("error yielded %d times, want once", errs)
	}
}
