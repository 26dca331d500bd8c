package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/notewise/internal/api/apitest"
	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/notes"
)

func TestClient_AccountFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := apitest.New(t)
	c := New(srv.URL)

	session, err := c.Register(ctx, "Ada", "ada@example.com", "correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, session.Token, c.Token())
	require.Equal(t, "ada@example.com", session.User.Email)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, session.User, *me)

	updated, err := c.UpdateMe(ctx, ProfileUpdate{Name: "Ada L."})
	require.NoError(t, err)
	require.Equal(t, "Ada L.", updated.Name)
	require.Equal(t, "ada@example.com", updated.Email)

	c.SetToken("")
	_, err = c.Me(ctx)
	require.Equal(t, errs.Unauthenticated, errs.CodeOf(err))

	_, err = c.Login(ctx, "ada@example.com", "wrong password!")
	require.Equal(t, errs.Unauthenticated, errs.CodeOf(err))
	require.Equal(t, "invalid email or password", errs.MessageOf(err))

	again, err := c.Login(ctx, "ada@example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, me.ID, again.User.ID)
	require.Equal(t, again.Token, c.Token())

	_, err = New(srv.URL).Register(ctx, "Other", "ada@example.com", "another password")
	require.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestClient_NoteOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := apitest.New(t)
	alice := New(srv.URL, WithToken(srv.Token(t, "alice")))
	bob := New(srv.URL, WithToken(srv.Token(t, "bob")))

	created, err := alice.CreateNote(ctx, notes.CreateNoteParams{
		Title:   "Groceries",
		Content: "milk, eggs",
		Tags:    []notes.Tag{{Name: "home", Color: "blue"}},
	})
	require.NoError(t, err)
	require.Equal(t, "alice", created.OwnerID)

	got, err := alice.GetNote(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, created.Tags, got.Tags)

	pinned := true
	updated, err := alice.UpdateNote(ctx, created.ID, notes.UpdateNoteParams{IsPinned: &pinned})
	require.NoError(t, err)
	require.True(t, updated.IsPinned)
	require.Equal(t, "Groceries", updated.Title)

	found, err := alice.SearchNotes(ctx, "EGGS")
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = bob.GetNote(ctx, created.ID)
	require.Equal(t, errs.PermissionDenied, errs.CodeOf(err))
	require.Equal(t, errs.PermissionDenied, errs.CodeOf(bob.DeleteNote(ctx, created.ID)))

	empty := ""
	_, err = alice.UpdateNote(ctx, created.ID, notes.UpdateNoteParams{Title: &empty})
	require.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	_, err = alice.SearchNotes(ctx, " ")
	require.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	require.NoError(t, alice.DeleteNote(ctx, created.ID))
	_, err = alice.GetNote(ctx, created.ID)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))

	list, err := alice.ListNotes(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestClient_CacheAgainstServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := apitest.New(t)
	cache := NewCache(New(srv.URL, WithToken(srv.Token(t, "alice"))))

	// Seed one note behind the cache's back
	_, err := srv.Notes.Create(ctx, "alice", notes.CreateNoteParams{Title: "Existing"})
	require.NoError(t, err)
	require.NoError(t, cache.Refresh(ctx))
	require.Len(t, cache.Notes(), 1)

	n, err := cache.Create(ctx, notes.CreateNoteParams{Title: "Fresh", Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, cache.TogglePin(ctx, n.ID))
	require.NoError(t, cache.ToggleArchive(ctx, n.ID))

	got, ok := cache.Get(n.ID)
	require.True(t, ok)
	require.True(t, got.IsPinned)
	require.True(t, got.IsArchived)

	stored, err := srv.Notes.Get(ctx, "alice", n.ID)
	require.NoError(t, err)
	require.Equal(t, stored.UpdatedAt.UnixNano(), got.UpdatedAt.UnixNano())

	require.Equal(t, notes.ViewCounts{All: 1, Pinned: 0, Archived: 1}, cache.Counts())

	cache.Clear()
	require.Empty(t, cache.Notes())
}

func TestClient_DecodeError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		body     string
		wantCode errs.Code
		wantMsg  string
	}{
		{"coded body", http.StatusNotFound, `{"error":"note not found: x","code":"not_found"}`, errs.NotFound, "note not found: x"},
		{"code disagrees with status", http.StatusForbidden, `{"error":"nope","code":"not_found"}`, errs.PermissionDenied, "nope"},
		{"plain text body", http.StatusTooManyRequests, "slow down", errs.ResourceExhausted, "Too Many Requests"},
		{"empty body", http.StatusBadGateway, "", errs.Internal, "Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			_, err := New(ts.URL).ListNotes(context.Background())
			require.Error(t, err)
			require.Equal(t, tc.wantCode, errs.CodeOf(err))
			require.Equal(t, tc.wantMsg, errs.MessageOf(err))
		})
	}
}

func TestClient_TransportAndDecodeFailures(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not":"a list"`))
	}))
	_, err := New(ts.URL).ListNotes(context.Background())
	require.Equal(t, errs.Internal, errs.CodeOf(err))

	ts.Close()
	_, err = New(ts.URL).ListNotes(context.Background())
	require.Equal(t, errs.Unavailable, errs.CodeOf(err))
}
