package suppression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/store/boltstore"
)

type staticSource struct {
	emails []string
	err    error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Fetch(context.Context) ([]string, error) {
	return s.emails, s.err
}

func newStore(t *testing.T) *boltstore.Storage {
	t.Helper()
	st, err := boltstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSyncMirrorsUpstream(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.AddSuppressions(ctx, []*models.SuppressionEntry{
		{Email: "stale@old.com", Source: "static"},
		{Email: "kept@acme.com", Source: "static"},
	})
	if err != nil {
		t.Fatal(err)
	}

	src := &staticSource{emails: []string{"Kept@Acme.com", "new@acme.com", "new@acme.com", ""}}
	res, err := NewSyncer(src, st, nil).Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want := Result{Upstream: 2, Added: 1, Removed: 1, Total: 2}
	if *res != want {
		t.Errorf("Sync() = %+v, want %+v", *res, want)
	}

	got, err := st.ListSuppressed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != "[kept@acme.com new@acme.com]" {
		t.Errorf("mirror = %v", got)
	}
}

func TestSyncFetchErrorKeepsMirror(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	st.AddSuppressions(ctx, []*models.SuppressionEntry{{Email: "a@b.com"}})

	_, err := NewSyncer(&staticSource{err: errors.New("timeout")}, st, nil).Sync(ctx)
	if err == nil {
		t.Fatal("Sync() error = nil, want error")
	}

	n, _ := st.CountSuppressions(ctx)
	if n != 1 {
		t.Errorf("CountSuppressions() = %d, want 1", n)
	}
}

func TestSendGridSourcePaging(t *testing.T) {
	const total = sendGridPageSize + 5
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v3/suppression/unsubscribes" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer SG.key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var page []unsubscribe
		for i := offset; i < total && i < offset+limit; i++ {
			page = append(page, unsubscribe{Email: fmt.Sprintf("u%d@example.com", i)})
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	emails, err := NewSendGridSource("SG.key", srv.URL, 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(emails) != total {
		t.Errorf("Fetch() len = %d, want %d", len(emails), total)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestSendGridSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"forbidden"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewSendGridSource("k", srv.URL, 0).Fetch(context.Background()); err == nil {
		t.Error("Fetch() error = nil, want error")
	}
}

type fakeSES struct {
	pages [][]string
}

func (f *fakeSES) ListSuppressedDestinations(_ context.Context, in *sesv2.ListSuppressedDestinationsInput, _ ...func(*sesv2.Options)) (*sesv2.ListSuppressedDestinationsOutput, error) {
	idx := 0
	if in.NextToken != nil {
		idx, _ = strconv.Atoi(*in.NextToken)
	}

	out := &sesv2.ListSuppressedDestinationsOutput{}
	for _, e := range f.pages[idx] {
		out.SuppressedDestinationSummaries = append(out.SuppressedDestinationSummaries, types.SuppressedDestinationSummary{
			EmailAddress: aws.String(e),
			Reason:       types.SuppressionListReasonBounce,
		})
	}
	if idx+1 < len(f.pages) {
		out.NextToken = aws.String(strconv.Itoa(idx + 1))
	}
	return out, nil
}

func TestSESSource(t *testing.T) {
	src := NewSESSource(&fakeSES{pages: [][]string{{"a@x.com", "b@x.com"}, {"c@x.com"}}})

	emails, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if fmt.Sprint(emails) != "[a@x.com b@x.com c@x.com]" {
		t.Errorf("Fetch() = %v", emails)
	}
}
