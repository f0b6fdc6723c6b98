// Package storetest is a conformance suite every notes.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) notes.Store

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func draft(t *testing.T, title, body string) notes.Draft {
	t.Helper()
	d, err := notes.NewDraft(notes.CreateInput{Title: &title, Body: &body})
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string {
	return &s
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertThenGet", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		created, err := store.Insert(ctx, draft(t, "Groceries", "milk"), base)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.True(t, created.CreatedAt.Equal(created.UpdatedAt))

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "Groceries", got.Title)
		require.Equal(t, "milk", got.Body)
		require.True(t, base.Equal(got.CreatedAt), "createdAt %v", got.CreatedAt)
		require.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := open(t, newStore)
		_, err := store.Get(context.Background(), notes.NewID())
		require.ErrorIs(t, err, notes.ErrNotFound)
	})

	t.Run("DuplicateTitleIgnoresCaseAndAccents", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		_, err := store.Insert(ctx, draft(t, "Meeting", ""), base)
		require.NoError(t, err)
		_, err = store.Insert(ctx, draft(t, "meeting", ""), base)
		requireDuplicate(t, err, "meeting")
		_, err = store.Insert(ctx, draft(t, "MEETING", ""), base)
		requireDuplicate(t, err, "MEETING")

		_, err = store.Insert(ctx, draft(t, "Café", ""), base)
		require.NoError(t, err)
		_, err = store.Insert(ctx, draft(t, "cafe", ""), base)
		requireDuplicate(t, err, "cafe")
	})

	t.Run("ConcurrentDuplicateInsertsHaveOneWinner", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()
		titles := []string{"Standup", "standup", "STANDUP", "StandUp", "sTandup", "standUP"}

		var wg sync.WaitGroup
		results := make([]error, len(titles))
		for i, title := range titles {
			wg.Add(1)
			go func(i int, title string) {
				defer wg.Done()
				_, results[i] = store.Insert(ctx, draft(t, title, ""), base)
			}(i, title)
		}
		wg.Wait()

		successes := 0
		for _, err := range results {
			if err == nil {
				successes++
				continue
			}
			require.Equal(t, errs.AlreadyExists, errs.CodeOf(err), "unexpected error: %v", err)
		}
		require.Equal(t, 1, successes)

		_, total, err := store.List(ctx, listParams(t, 1, 10, "title"))
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
	})

	t.Run("UpdateChangesOnlySuppliedFields", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		created, err := store.Insert(ctx, draft(t, "Old", "keep me"), base)
		require.NoError(t, err)

		updated, err := store.Update(ctx, created.ID, notes.Patch{Title: strPtr("New")}, base)
		require.NoError(t, err)
		require.Equal(t, "New", updated.Title)
		require.Equal(t, "keep me", updated.Body)
		require.True(t, created.CreatedAt.Equal(updated.CreatedAt))
		require.True(t, updated.UpdatedAt.After(updated.CreatedAt), "updatedAt %v createdAt %v", updated.UpdatedAt, updated.CreatedAt)

		later := base.Add(time.Minute)
		updated, err = store.Update(ctx, created.ID, notes.Patch{Body: strPtr("")}, later)
		require.NoError(t, err)
		require.Equal(t, "New", updated.Title)
		require.Equal(t, "", updated.Body)
		require.True(t, later.Equal(updated.UpdatedAt), "updatedAt %v", updated.UpdatedAt)

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, *updated, *got)
	})

	t.Run("EmptyPatchRefreshesUpdatedAt", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		created, err := store.Insert(ctx, draft(t, "Touch", "body"), base)
		require.NoError(t, err)
		updated, err := store.Update(ctx, created.ID, notes.Patch{}, base.Add(time.Second))
		require.NoError(t, err)
		require.Equal(t, "Touch", updated.Title)
		require.Equal(t, "body", updated.Body)
		require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("UpdateTitleCollision", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		_, err := store.Insert(ctx, draft(t, "Alpha", ""), base)
		require.NoError(t, err)
		beta, err := store.Insert(ctx, draft(t, "Beta", ""), base)
		require.NoError(t, err)

		_, err = store.Update(ctx, beta.ID, notes.Patch{Title: strPtr("ALPHA")}, base)
		requireDuplicate(t, err, "ALPHA")

		got, err := store.Get(ctx, beta.ID)
		require.NoError(t, err)
		require.Equal(t, "Beta", got.Title)

		// Recasing a note's own title is not a collision.
		recased, err := store.Update(ctx, beta.ID, notes.Patch{Title: strPtr("BETA")}, base)
		require.NoError(t, err)
		require.Equal(t, "BETA", recased.Title)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		store := open(t, newStore)
		_, err := store.Update(context.Background(), notes.NewID(), notes.Patch{Title: strPtr("x")}, base)
		require.ErrorIs(t, err, notes.ErrNotFound)
	})

	t.Run("DeleteThenGetAndTitleReuse", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		created, err := store.Insert(ctx, draft(t, "Ephemeral", "x"), base)
		require.NoError(t, err)

		deleted, err := store.Delete(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.ID, deleted.ID)
		require.Equal(t, "Ephemeral", deleted.Title)

		_, err = store.Get(ctx, created.ID)
		require.ErrorIs(t, err, notes.ErrNotFound)
		_, err = store.Delete(ctx, created.ID)
		require.ErrorIs(t, err, notes.ErrNotFound)

		_, err = store.Insert(ctx, draft(t, "ephemeral", ""), base)
		require.NoError(t, err, "a deleted note's title must be reusable")
	})

	t.Run("ListEmpty", func(t *testing.T) {
		store := open(t, newStore)
		items, total, err := store.List(context.Background(), listParams(t, 1, 10, ""))
		require.NoError(t, err)
		require.Empty(t, items)
		require.EqualValues(t, 0, total)
	})

	t.Run("ListPaginates", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		for i := 0; i < 25; i++ {
			_, err := store.Insert(ctx, draft(t, fmt.Sprintf("Note %02d", i), ""), base.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
		}

		seen := map[string]bool{}
		for page := 1; page <= 3; page++ {
			items, total, err := store.List(ctx, listParams(t, page, 10, "title"))
			require.NoError(t, err)
			require.EqualValues(t, 25, total)
			want := 10
			if page == 3 {
				want = 5
			}
			require.Len(t, items, want)
			for i, n := range items {
				require.Equal(t, fmt.Sprintf("Note %02d", (page-1)*10+i), n.Title)
				require.False(t, seen[n.ID], "note %s appeared twice", n.ID)
				seen[n.ID] = true
			}
		}

		items, _, err := store.List(ctx, listParams(t, 4, 10, "title"))
		require.NoError(t, err)
		require.Empty(t, items)
	})

	t.Run("ListSorts", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		// Inserted out of title and body order with distinct timestamps.
		bodies := map[string]string{"cherry": "Zest", "Banana": "apple pie", "apple": "mango"}
		var ids []string
		for i, title := range []string{"cherry", "Banana", "apple"} {
			n, err := store.Insert(ctx, draft(t, title, bodies[title]), base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			ids = append(ids, n.ID)
		}

		cases := map[string][]string{
			"title":      {"apple", "Banana", "cherry"},
			"-title":     {"cherry", "Banana", "apple"},
			"createdAt":  {"cherry", "Banana", "apple"},
			"-createdAt": {"apple", "Banana", "cherry"},
			"-updatedAt": {"apple", "Banana", "cherry"},
			"body":       {"Banana", "apple", "cherry"},
			"-body":      {"cherry", "apple", "Banana"},
			"unknown":    {"apple", "Banana", "cherry"},
		}
		for sort, want := range cases {
			items, _, err := store.List(ctx, listParams(t, 1, 10, sort))
			require.NoError(t, err)
			require.Equal(t, want, titles(items), "sort=%s", sort)
		}

		slices.Sort(ids)
		for _, sort := range []string{"id", "_id"} {
			items, _, err := store.List(ctx, listParams(t, 1, 10, sort))
			require.NoError(t, err)
			got := make([]string, 0, len(items))
			for _, n := range items {
				got = append(got, n.ID)
			}
			require.Equal(t, ids, got, "sort=%s", sort)
		}
	})
}

// CheckModel drives store with a random operation sequence and compares it
// against an in-memory model of title uniqueness.
func CheckModel(t *rapid.T, store notes.Store) {
	ctx := context.Background()
	byID := map[string]notes.Note{}
	keys := map[string]string{} // title key -> id
	now := base

	titleGen := rapid.SampledFrom([]string{"plan", "Plan", "PLAN", "plán", "todo", "ToDo", "ideas", "Idéas", "log"})
	steps := rapid.IntRange(1, 30).Draw(t, "steps")
	for step := 0; step < steps; step++ {
		now = now.Add(time.Duration(rapid.IntRange(0, 2000).Draw(t, "advance_ms")) * time.Millisecond)
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}

		op := rapid.IntRange(0, 2).Draw(t, "op")
		if len(ids) == 0 {
			op = 0
		}
		switch op {
		case 0:
			title := titleGen.Draw(t, "title")
			d, err := notes.NewDraft(notes.CreateInput{Title: &title})
			if err != nil {
				t.Fatalf("draft: %v", err)
			}
			created, err := store.Insert(ctx, d, now)
			if _, taken := keys[notes.TitleKey(title)]; taken {
				if errs.CodeOf(err) != errs.AlreadyExists {
					t.Fatalf("insert %q: want duplicate, got %v", title, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("insert %q: %v", title, err)
			}
			byID[created.ID] = *created
			keys[notes.TitleKey(title)] = created.ID
		case 1:
			id := rapid.SampledFrom(ids).Draw(t, "update_id")
			title := titleGen.Draw(t, "new_title")
			prev := byID[id]
			updated, err := store.Update(ctx, id, notes.Patch{Title: &title}, now)
			if owner, taken := keys[notes.TitleKey(title)]; taken && owner != id {
				if errs.CodeOf(err) != errs.AlreadyExists {
					t.Fatalf("update %q: want duplicate, got %v", title, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("update %q: %v", title, err)
			}
			if !updated.UpdatedAt.After(prev.UpdatedAt) {
				t.Fatalf("updatedAt did not advance: prev=%v got=%v", prev.UpdatedAt, updated.UpdatedAt)
			}
			delete(keys, notes.TitleKey(prev.Title))
			keys[notes.TitleKey(title)] = id
			byID[id] = *updated
		case 2:
			id := rapid.SampledFrom(ids).Draw(t, "delete_id")
			if _, err := store.Delete(ctx, id); err != nil {
				t.Fatalf("delete: %v", err)
			}
			delete(keys, notes.TitleKey(byID[id].Title))
			delete(byID, id)
			if _, err := store.Get(ctx, id); !errors.Is(err, notes.ErrNotFound) {
				t.Fatalf("get after delete: want not found, got %v", err)
			}
		}
	}

	items, total, err := store.List(ctx, notes.NewListParams(1, notes.MaxLimit, "title"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if int(total) != len(byID) || len(items) != len(byID) {
		t.Fatalf("list size mismatch: total=%d items=%d model=%d", total, len(items), len(byID))
	}
	for _, n := range items {
		want, ok := byID[n.ID]
		if !ok {
			t.Fatalf("listed unknown note %s", n.ID)
		}
		if want.Title != n.Title || !want.UpdatedAt.Equal(n.UpdatedAt) {
			t.Fatalf("note %s mismatch: store=%+v model=%+v", n.ID, n, want)
		}
	}
}

func open(t *testing.T, newStore Factory) notes.Store {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func listParams(t *testing.T, page, limit int, sort string) notes.ListParams {
	t.Helper()
	return notes.NewListParams(page, limit, sort)
}

func requireDuplicate(t *testing.T, err error, title string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, errs.AlreadyExists, errs.CodeOf(err), "unexpected error: %v", err)
	require.Equal(t, title, errs.FieldsOf(err)["title"])
}

func titles(items []notes.Note) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Title)
	}
	return out
}
