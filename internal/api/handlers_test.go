package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notes-api/internal/api"
	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/testdb"
)

type testServer struct {
	*httptest.Server
	store notes.Store
}

func newRouter(store notes.Store) http.Handler {
	h := api.NewHandler(notes.NewService(store), "test", "http://notes.example.test")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, "")
	h.RegisterRoutes(mux, "/api/v1")
	h.RegisterDocs(mux)
	mux.HandleFunc("/", api.NotFoundHandler)
	return mux
}

func newTestServerWithStore(t *testing.T, wrap func(notes.Store) notes.Store) *testServer {
	t.Helper()
	store, err := testdb.NewStoreInMemory()
	require.NoError(t, err)
	var s notes.Store = store
	if wrap != nil {
		s = wrap(store)
	}
	ts := httptest.NewServer(newRouter(s))
	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})
	return &testServer{Server: ts, store: s}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStore(t, nil)
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), "body=%s", raw)
	return out
}

func (ts *testServer) create(t *testing.T, title, body string) notes.Note {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"title": title, "body": body})
	resp, raw := ts.do(t, http.MethodPost, "/notes", string(payload))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	return decode[notes.Note](t, raw)
}

func TestCreateThenDuplicate(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, http.MethodPost, "/notes", `{"title":"Shopping List","body":"eggs"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	created := decode[notes.Note](t, raw)
	require.Equal(t, "Shopping List", created.Title)
	require.Equal(t, "eggs", created.Body)
	require.True(t, created.CreatedAt.Equal(created.UpdatedAt))
	require.True(t, strings.HasSuffix(resp.Header.Get("Location"), "/notes/"+created.ID), resp.Header.Get("Location"))
	require.True(t, strings.HasPrefix(resp.Header.Get("Location"), "http://"), resp.Header.Get("Location"))

	resp, raw = ts.do(t, http.MethodPost, "/notes", `{"title":"shopping list"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[api.ErrorResponse](t, raw)
	require.Equal(t, "DuplicateError", body.Error)
	require.Equal(t, "shopping list", body.Fields["title"])
	require.NotEmpty(t, body.Message)
}

func TestCRUDLifecycle(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "  Plans  ", "  draft  ")
	require.Equal(t, "Plans", created.Title)
	require.Equal(t, "draft", created.Body)

	resp, raw := ts.do(t, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, created.ID, decode[notes.Note](t, raw).ID)

	resp, raw = ts.do(t, http.MethodPatch, "/notes/"+created.ID, `{"title":"New"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	updated := decode[notes.Note](t, raw)
	require.Equal(t, "New", updated.Title)
	require.Equal(t, "draft", updated.Body)
	require.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	resp, raw = ts.do(t, http.MethodPatch, "/notes/"+created.ID, `{"title":null,"body":"final"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	require.Equal(t, "New", decode[notes.Note](t, raw).Title)

	resp, raw = ts.do(t, http.MethodDelete, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, raw)

	resp, raw = ts.do(t, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	notFound := decode[api.ErrorResponse](t, raw)
	require.Equal(t, "NotFound", notFound.Error)
	require.Equal(t, "Note not found", notFound.Message)

	resp, _ = ts.do(t, http.MethodDelete, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPatch, "/notes/"+created.ID, `{"body":"x"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name  string
		body  string
		paths []string
	}{
		{"missing title", `{}`, []string{"title"}},
		{"blank title", `{"title":"   "}`, []string{"title"}},
		{"long title", fmt.Sprintf(`{"title":%q}`, strings.Repeat("t", 101)), []string{"title"}},
		{"long body and blank title", fmt.Sprintf(`{"title":"","body":%q}`, strings.Repeat("b", 10001)), []string{"title", "body"}},
		{"wrong type", `{"title":5}`, []string{"title"}},
		{"wrong type and long body", fmt.Sprintf(`{"title":true,"body":%q}`, strings.Repeat("b", 10001)), []string{"title", "body"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := ts.do(t, http.MethodPost, "/notes", tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, "body=%s", raw)
			body := decode[api.ErrorResponse](t, raw)
			require.Equal(t, "ValidationError", body.Error)
			var paths []string
			for _, d := range body.Details {
				paths = append(paths, d.Path)
				require.NotEmpty(t, d.Message)
			}
			require.ElementsMatch(t, tc.paths, paths)
		})
	}

	_, total, err := ts.store.List(context.Background(), notes.NewListParams(1, 1, ""))
	require.NoError(t, err)
	require.Zero(t, total, "rejected payloads must not reach the store")
}

func TestPatchValidation(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "Keep", "")

	resp, raw := ts.do(t, http.MethodPatch, "/notes/"+created.ID, `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "ValidationError", decode[api.ErrorResponse](t, raw).Error)

	resp, raw = ts.do(t, http.MethodPatch, "/notes/"+created.ID, `{"body":["a"]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details := decode[api.ErrorResponse](t, raw).Details
	require.Len(t, details, 1)
	require.Equal(t, "body", details[0].Path)

	other := ts.create(t, "Other", "")
	resp, raw = ts.do(t, http.MethodPatch, "/notes/"+other.ID, `{"title":"KEEP"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "DuplicateError", decode[api.ErrorResponse](t, raw).Error)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/notes/not-an-id", "/notes/123"} {
		resp, raw := ts.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode[api.ErrorResponse](t, raw)
		require.Equal(t, "BadRequest", body.Error)
		require.Equal(t, "Invalid id format", body.Message)
	}
	resp, _ := ts.do(t, http.MethodPatch, "/notes/nope", `{"title":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/notes/nope", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, payload := range []string{`{"title":`, `[1,2]`, `"title"`, `null`} {
		resp, raw := ts.do(t, http.MethodPost, "/notes", payload)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload %s", payload)
		require.Equal(t, "BadRequest", decode[api.ErrorResponse](t, raw).Error)
	}

	huge := fmt.Sprintf(`{"title":"big","body":%q}`, strings.Repeat("x", api.MaxBodyBytes))
	rec := httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(huge)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "PayloadTooLarge", decode[api.ErrorResponse](t, rec.Body.Bytes()).Error)
}

func TestUnknownFieldsAreIgnored(t *testing.T) {
	ts := newTestServer(t)
	resp, raw := ts.do(t, http.MethodPost, "/notes", `{"title":"Extra","color":"red","id":"client-chosen"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	note := decode[notes.Note](t, raw)
	require.NotEqual(t, "client-chosen", note.ID)
}

func TestListPagination(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, http.MethodGet, "/notes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[notes.ListResult](t, raw)
	require.NotNil(t, empty.Items)
	require.Empty(t, empty.Items)
	require.Equal(t, 1, empty.Pages)
	require.Equal(t, notes.DefaultLimit, empty.Limit)
	require.Contains(t, string(raw), `"items":[]`)

	for i := 0; i < 12; i++ {
		ts.create(t, fmt.Sprintf("Note %02d", i), "")
	}

	resp, raw = ts.do(t, http.MethodGet, "/notes?page=2&limit=5&sort=title", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[notes.ListResult](t, raw)
	require.EqualValues(t, 12, page.Total)
	require.Equal(t, 3, page.Pages)
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 5)
	require.Equal(t, "Note 05", page.Items[0].Title)

	resp, raw = ts.do(t, http.MethodGet, "/notes?page=abc&limit=zzz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lenient := decode[notes.ListResult](t, raw)
	require.Equal(t, 1, lenient.Page)
	require.Equal(t, notes.DefaultLimit, lenient.Limit)

	resp, raw = ts.do(t, http.MethodGet, "/notes?limit=1000", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, notes.MaxLimit, decode[notes.ListResult](t, raw).Limit)

}

func TestListSortFields(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "beta", "zebra")
	ts.create(t, "alpha", "Mango")
	ts.create(t, "gamma", "apple")

	listTitles := func(sort string) []string {
		t.Helper()
		resp, raw := ts.do(t, http.MethodGet, "/notes?sort="+sort, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, "sort=%s: %s", sort, raw)
		page := decode[notes.ListResult](t, raw)
		out := make([]string, 0, len(page.Items))
		for _, n := range page.Items {
			out = append(out, n.Title)
		}
		return out
	}

	require.Equal(t, []string{"gamma", "alpha", "beta"}, listTitles("body"))
	require.Equal(t, []string{"beta", "alpha", "gamma"}, listTitles("-body"))
	require.Len(t, listTitles("id"), 3)
	require.Equal(t, listTitles("id"), listTitles("_id"))

	newestFirst := listTitles(notes.DefaultSort)
	for _, sort := range []string{"", "bogus", "-bogus", "--title", "-"} {
		require.Equal(t, newestFirst, listTitles(sort), "sort=%s falls back to %s", sort, notes.DefaultSort)
	}
}

func testListPagesProperty(t *rapid.T) {
	store, err := testdb.NewStoreInMemory()
	if err != nil {
		t.Fatalf("failed to create in-memory database: %v", err)
	}
	defer store.Close()
	ts := httptest.NewServer(newRouter(store))
	defer ts.Close()

	n := rapid.IntRange(0, 12).Draw(t, "n")
	for i := 0; i < n; i++ {
		payload := fmt.Sprintf(`{"title":"item %d"}`, i)
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/notes", strings.NewReader(payload))
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status %d", resp.StatusCode)
		}
	}

	limit := rapid.IntRange(1, 10).Draw(t, "limit")
	page := rapid.IntRange(1, 4).Draw(t, "page")
	resp, err := ts.Client().Get(fmt.Sprintf("%s/notes?page=%d&limit=%d", ts.URL, page, limit))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	var res notes.ListResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	wantPages := (n + limit - 1) / limit
	if wantPages < 1 {
		wantPages = 1
	}
	if res.Pages != wantPages || int(res.Total) != n {
		t.Fatalf("pages=%d total=%d, want pages=%d total=%d", res.Pages, res.Total, wantPages, n)
	}
	wantItems := n - (page-1)*limit
	wantItems = max(0, min(wantItems, limit))
	if len(res.Items) != wantItems {
		t.Fatalf("page %d has %d items, want %d", page, len(res.Items), wantItems)
	}
}

func TestListPagesProperty(t *testing.T) {
	rapid.Check(t, testListPagesProperty)
}

func TestConcurrentDuplicateCreates(t *testing.T) {
	ts := newTestServer(t)

	const workers = 8
	statuses := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := "Meeting"
			if i%2 == 1 {
				title = "meeting"
			}
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/notes", strings.NewReader(fmt.Sprintf(`{"title":%q}`, title)))
			resp, err := ts.Client().Do(req)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}(i)
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for s := range statuses {
		counts[s]++
	}
	require.Equal(t, 1, counts[http.StatusCreated], "counts=%v", counts)
	require.Equal(t, workers-1, counts[http.StatusConflict], "counts=%v", counts)
}

func TestVersionedRoutesMirrorRoot(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, http.MethodPost, "/api/v1/notes", `{"title":"Versioned"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	created := decode[notes.Note](t, raw)
	require.Contains(t, resp.Header.Get("Location"), "/api/v1/notes/"+created.ID)

	resp, _ = ts.do(t, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = ts.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestHealthReadyAndDocs(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(raw))

	resp, raw = ts.do(t, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)

	resp, raw = ts.do(t, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"name":"notes-api","version":"test","documentation":"/api/docs"}`, string(raw))

	resp, raw = ts.do(t, http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	doc := decode[map[string]any](t, raw)
	require.Equal(t, "3.0.3", doc["openapi"])
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, paths, "/notes/{id}")
}

// failingStore fails every call with an untyped driver error.
type failingStore struct {
	notes.Store
}

var errDriver = fmt.Errorf("dial tcp 10.0.0.7:27017: connection refused")

func (failingStore) List(context.Context, notes.ListParams) ([]notes.Note, int64, error) {
	return nil, 0, errDriver
}

func (failingStore) Ping(context.Context) error {
	return errDriver
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	ts := newTestServerWithStore(t, func(s notes.Store) notes.Store { return failingStore{s} })

	resp, raw := ts.do(t, http.MethodGet, "/notes", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[api.ErrorResponse](t, raw)
	require.Equal(t, "InternalError", body.Error)
	require.Equal(t, "internal error", body.Message)
	require.NotContains(t, string(raw), "10.0.0.7")

	resp, raw = ts.do(t, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, errs.Kind(errs.Unavailable), decode[api.ErrorResponse](t, raw).Error)
	require.NotContains(t, string(raw), "10.0.0.7")

	resp, _ = ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "health must not depend on the store")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	resp, raw := ts.do(t, http.MethodGet, "/nope/deeper", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[api.ErrorResponse](t, raw)
	require.Equal(t, "NotFound", body.Error)
	require.Equal(t, "/nope/deeper", body.Path)
}

func TestNulCharactersAreStored(t *testing.T) {
	ts := newTestServer(t)

	lone := ts.create(t, "\x00", "")
	require.Equal(t, "\x00", lone.Title)
	leading := ts.create(t, "\x00abc", "\x00"+strings.Repeat("b", notes.BodyMaxLen-1))
	require.Len(t, []rune(leading.Body), notes.BodyMaxLen)

	resp, raw := ts.do(t, http.MethodPatch, "/notes/"+lone.ID, `{"title":"\u0000x","body":"\u0000"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	patched := decode[notes.Note](t, raw)
	require.Equal(t, "\x00x", patched.Title)
	require.Equal(t, "\x00", patched.Body)

	resp, raw = ts.do(t, http.MethodPost, "/notes", `{"title":"\u0000abc"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode, "body=%s", raw)
}

func TestCreateEchoesUnicodeTitles(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "Café", "crème brûlée")

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"title": "CAFE"}))
	resp, raw := ts.do(t, http.MethodPost, "/notes", buf.String())
	require.Equal(t, http.StatusConflict, resp.StatusCode, "body=%s", raw)

	resp, raw = ts.do(t, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "crème brûlée", decode[notes.Note](t, raw).Body)
}
