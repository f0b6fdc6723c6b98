package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notes-api/internal/client"
	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/server"
	"github.com/kuitang/notes-api/internal/testdb"
)

func ptr[T any](v T) *T { return &v }

// patchCounter counts PATCH requests and records their bodies.
type patchCounter struct {
	mu     sync.Mutex
	bodies []string
	count  atomic.Int32
}

func (p *patchCounter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			raw, _ := io.ReadAll(r.Body)
			p.mu.Lock()
			p.bodies = append(p.bodies, string(raw))
			p.mu.Unlock()
			p.count.Add(1)
			r.Body = io.NopCloser(strings.NewReader(string(raw)))
		}
		next.ServeHTTP(w, r)
	})
}

func (p *patchCounter) lastBody() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bodies) == 0 {
		return ""
	}
	return p.bodies[len(p.bodies)-1]
}

func newTestClient(t *testing.T, prefix string) (*client.Client, *patchCounter) {
	t.Helper()
	store, err := testdb.NewStoreInMemory()
	require.NoError(t, err)
	counter := &patchCounter{}
	ts := httptest.NewServer(counter.wrap(server.New(notes.NewService(store), server.Options{Version: "test"}).Router()))
	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})
	return client.New(ts.URL + prefix + "/"), counter
}

func TestClient_CRUD(t *testing.T) {
	for _, prefix := range []string{"", server.APIPrefix} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			c, _ := newTestClient(t, prefix)
			ctx := context.Background()

			require.NoError(t, c.Health(ctx))

			created, err := c.Create(ctx, notes.CreateInput{Title: ptr("  Groceries "), Body: ptr("milk")})
			require.NoError(t, err)
			require.Equal(t, "Groceries", created.Title)
			require.Equal(t, created.CreatedAt, created.UpdatedAt)

			got, err := c.Get(ctx, created.ID)
			require.NoError(t, err)
			require.Equal(t, created.ID, got.ID)

			updated, err := c.Update(ctx, created.ID, notes.PatchInput{Body: ptr("milk, eggs")})
			require.NoError(t, err)
			require.Equal(t, "Groceries", updated.Title)
			require.Equal(t, "milk, eggs", updated.Body)
			require.True(t, updated.UpdatedAt.After(updated.CreatedAt))

			page, err := c.List(ctx, client.ListOptions{Page: 1, Limit: 10, Sort: "title"})
			require.NoError(t, err)
			require.Equal(t, int64(1), page.Total)
			require.Equal(t, 1, page.Pages)
			require.Len(t, page.Items, 1)

			require.NoError(t, c.Delete(ctx, created.ID))
			_, err = c.Get(ctx, created.ID)
			require.ErrorIs(t, err, notes.ErrNotFound)
		})
	}
}

func TestClient_APIErrors(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	_, err := c.Create(ctx, notes.CreateInput{Title: ptr("Meeting")})
	require.NoError(t, err)

	_, err = c.Create(ctx, notes.CreateInput{Title: ptr("meeting")})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	require.Equal(t, errs.AlreadyExists, apiErr.Code)
	require.Equal(t, "DuplicateError", apiErr.Kind)
	require.Equal(t, "meeting", apiErr.Fields["title"])

	_, err = c.Create(ctx, notes.CreateInput{Title: ptr(" "), Body: ptr(strings.Repeat("x", notes.BodyMaxLen+1))})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, errs.InvalidArgument, apiErr.Code)
	paths := make([]string, 0, len(apiErr.Details))
	for _, d := range apiErr.Details {
		paths = append(paths, d.Path)
	}
	require.ElementsMatch(t, []string{"title", "body"}, paths)
	require.Contains(t, apiErr.Error(), "400 ValidationError")

	_, err = c.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, notes.ErrInvalidID)

	page, err := c.List(ctx, client.ListOptions{Sort: "color"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := client.New(ts.URL).Health(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, errs.Internal, apiErr.Code)
	require.Equal(t, "upstream down", apiErr.Message)
}

func testClient_ListQuery(t *rapid.T) {
	opts := client.ListOptions{
		Page:  rapid.IntRange(-2, 50).Draw(t, "page"),
		Limit: rapid.IntRange(-2, 300).Draw(t, "limit"),
		Sort:  rapid.SampledFrom([]string{"", "title", "-createdAt"}).Draw(t, "sort"),
	}

	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[],"total":0,"page":1,"limit":50,"pages":1}`)
	}))
	defer ts.Close()

	if _, err := client.New(ts.URL).List(context.Background(), opts); err != nil {
		t.Fatalf("List: %v", err)
	}
	if (opts.Page > 0) != strings.Contains(gotQuery, "page=") {
		t.Fatalf("page=%d but query %q", opts.Page, gotQuery)
	}
	if (opts.Limit > 0) != strings.Contains(gotQuery, "limit=") {
		t.Fatalf("limit=%d but query %q", opts.Limit, gotQuery)
	}
	if (opts.Sort != "") != strings.Contains(gotQuery, "sort=") {
		t.Fatalf("sort=%q but query %q", opts.Sort, gotQuery)
	}
}

func TestClient_ListQuery(t *testing.T) {
	rapid.Check(t, testClient_ListQuery)
}

func waitForStatus(t *testing.T, events <-chan client.SaveEvent, want client.SaveStatus) client.SaveEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Status == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestAutosaver_DebouncesAndMerges(t *testing.T) {
	c, counter := newTestClient(t, "")
	ctx := context.Background()
	note, err := c.Create(ctx, notes.CreateInput{Title: ptr("Draft")})
	require.NoError(t, err)

	events := make(chan client.SaveEvent, 16)
	saver := c.NewAutosaver(note.ID,
		client.WithDelay(100*time.Millisecond),
		client.WithStatusFunc(func(ev client.SaveEvent) { events <- ev }),
	)

	require.NoError(t, saver.SetBody("h"))
	require.NoError(t, saver.SetBody("he"))
	require.NoError(t, saver.SetTitle("Draft 2"))
	require.NoError(t, saver.SetBody("hello"))
	require.True(t, saver.Pending())

	ev := waitForStatus(t, events, client.StatusSaved)
	require.Equal(t, "Draft 2", ev.Note.Title)
	require.Equal(t, "hello", ev.Note.Body)
	require.Equal(t, int32(1), counter.count.Load())
	require.JSONEq(t, `{"title":"Draft 2","body":"hello"}`, counter.lastBody())
	require.False(t, saver.Pending())

	require.NoError(t, saver.Close(ctx))
	require.ErrorIs(t, saver.SetBody("late"), client.ErrAutosaverClosed)
}

func TestAutosaver_FlushSavesImmediately(t *testing.T) {
	c, counter := newTestClient(t, "")
	ctx := context.Background()
	note, err := c.Create(ctx, notes.CreateInput{Title: ptr("Flush me")})
	require.NoError(t, err)

	saver := c.NewAutosaver(note.ID, client.WithDelay(time.Hour))
	defer saver.Close(ctx)

	saved, err := saver.Flush(ctx)
	require.NoError(t, err)
	require.Nil(t, saved, "nothing pending")

	require.NoError(t, saver.SetBody("now"))
	saved, err = saver.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, "now", saved.Body)
	require.Equal(t, int32(1), counter.count.Load())
	require.JSONEq(t, `{"body":"now"}`, counter.lastBody())
}

func TestAutosaver_BlankTitleStaysPending(t *testing.T) {
	c, counter := newTestClient(t, "")
	ctx := context.Background()
	note, err := c.Create(ctx, notes.CreateInput{Title: ptr("Keep")})
	require.NoError(t, err)

	saver := c.NewAutosaver(note.ID, client.WithDelay(time.Hour))
	require.NoError(t, saver.SetTitle("   "))
	saved, err := saver.Flush(ctx)
	require.NoError(t, err)
	require.Nil(t, saved)
	require.True(t, saver.Pending())
	require.Equal(t, int32(0), counter.count.Load())

	require.NoError(t, saver.SetTitle("Kept"))
	require.NoError(t, saver.Close(ctx))
	require.Equal(t, int32(1), counter.count.Load())

	got, err := c.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, "Kept", got.Title)
}

func TestAutosaver_ReportsFailures(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()
	a, err := c.Create(ctx, notes.CreateInput{Title: ptr("Alpha")})
	require.NoError(t, err)
	_, err = c.Create(ctx, notes.CreateInput{Title: ptr("Beta")})
	require.NoError(t, err)

	events := make(chan client.SaveEvent, 16)
	saver := c.NewAutosaver(a.ID,
		client.WithDelay(20*time.Millisecond),
		client.WithStatusFunc(func(ev client.SaveEvent) { events <- ev }),
	)
	defer saver.Close(ctx)

	require.NoError(t, saver.SetTitle("BETA"))
	ev := waitForStatus(t, events, client.StatusError)
	var apiErr *client.APIError
	require.True(t, errors.As(ev.Err, &apiErr))
	require.Equal(t, errs.AlreadyExists, apiErr.Code)
}
