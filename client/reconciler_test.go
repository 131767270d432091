package client

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, typ event.Type, payload any) event.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return event.Envelope{Type: typ, Scope: event.InRoom("proj-9"), Payload: raw}
}

func TestReconciler_UpsertReplacesByID(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()

	// Given a local task t1 at version 1
	known, err := r.Apply(envelope(t, event.TaskAddedType,
		domain.Task{ID: "t1", Title: "Design spec", Status: domain.TaskTodo, Version: 1}))
	req.NoError(err)
	req.True(known)

	// When a task-updated event arrives for t1 at version 2
	_, err = r.Apply(envelope(t, event.TaskUpdatedType,
		domain.Task{ID: "t1", Title: "Design spec", Status: domain.TaskDone, Version: 2}))
	req.NoError(err)

	// Then exactly one t1 exists, at version 2
	tasks := r.Tasks()
	req.Len(tasks, 1)
	req.Equal(2, tasks[0].Version)
	req.Equal(domain.TaskDone, tasks[0].Status)
}

func TestReconciler_DuplicateAddIsIdempotent(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	message := domain.Message{ID: "m1", Content: "hello"}

	for range 3 {
		_, err := r.Apply(envelope(t, event.MessageReceivedType, message))
		req.NoError(err)
	}
	req.Len(r.Messages(), 1)
}

func TestReconciler_Removals(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	r.Load(domain.Project{
		ID:      "proj-9",
		Members: []domain.Member{{ID: "u1"}, {ID: "u2"}},
		Files:   []domain.File{{ID: "f1"}, {ID: "f2"}},
	})

	// When u2 and f1 are removed, twice
	for range 2 {
		_, err := r.Apply(envelope(t, event.TeamMemberRemovedType, event.MemberRemoved{ProjectID: "proj-9", UserID: "u2"}))
		req.NoError(err)
		_, err = r.Apply(envelope(t, event.FileDeletedType, event.FileDeleted{ProjectID: "proj-9", FileID: "f1"}))
		req.NoError(err)
	}

	// Then only the others remain
	req.Equal([]domain.Member{{ID: "u1"}}, r.Members())
	req.Equal([]domain.File{{ID: "f2"}}, r.Files())
}

func TestReconciler_PresenceIsReplaced(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()

	_, err := r.Apply(envelope(t, event.PresenceType, []domain.IdentityID{"u1", "u2"}))
	req.NoError(err)
	_, err = r.Apply(envelope(t, event.PresenceType, []domain.IdentityID{"u2"}))
	req.NoError(err)

	req.Equal([]domain.IdentityID{"u2"}, r.Presence())
}

func TestReconciler_UnknownAndMalformed(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()

	known, err := r.Apply(event.Envelope{Type: "new-task", Payload: json.RawMessage(`{}`)})
	req.NoError(err)
	req.False(known)

	_, err = r.Apply(event.Envelope{Type: event.TaskAddedType, Payload: json.RawMessage(`"nope"`)})
	req.Error(err)
	req.Empty(r.Tasks())
}

func TestCollection_RemoveKeepsIndex(t *testing.T) {
	req := require.New(t)
	c := NewCollection[domain.Task]()
	c.Upsert(domain.Task{ID: "a"})
	c.Upsert(domain.Task{ID: "b"})
	c.Upsert(domain.Task{ID: "c"})

	req.True(c.Remove("a"))
	req.False(c.Remove("a"))
	c.Upsert(domain.Task{ID: "c", Title: "renamed"})

	got, ok := c.Get("c")
	req.True(ok)
	req.Equal("renamed", got.Title)
	req.Equal(2, c.Len())
}

func TestReconciler_ProjectUpdated_IgnoresOlderEdit(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	r.Load(domain.Project{ID: "proj-9", Title: "Launch", Owner: "u1"})

	// Given a rename at 9:05
	known, err := r.Apply(envelope(t, event.ProjectUpdatedType,
		event.ProjectUpdated{ProjectID: "proj-9", Title: "Relaunch", Description: "Q3", UpdatedAt: at.Add(5 * time.Minute)}))
	req.NoError(err)
	req.True(known)

	// When an edit made at 9:00 arrives late
	_, err = r.Apply(envelope(t, event.ProjectUpdatedType,
		event.ProjectUpdated{ProjectID: "proj-9", Title: "Stale", UpdatedAt: at}))
	req.NoError(err)

	// Then the newer header stays and the owner is kept from the snapshot
	project := r.Project()
	req.Equal("Relaunch", project.Title)
	req.Equal("Q3", project.Description)
	req.Equal(domain.IdentityID("u1"), project.Owner)
}

func TestReconciler_ProjectDeleted_ClearsView(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()

	// Given a loaded project with a task and a member
	r.Load(domain.Project{
		ID:      "proj-9",
		Tasks:   []domain.Task{{ID: "t1", Title: "Design spec", Version: 1}},
		Members: []domain.Member{{ID: "u1", ProjectID: "proj-9", Role: domain.RoleAdmin}},
	})
	req.False(r.Deleted())

	// When the project is deleted
	known, err := r.Apply(envelope(t, event.ProjectDeletedType, event.ProjectDeleted{ProjectID: "proj-9"}))

	// Then the view is emptied and flagged
	req.NoError(err)
	req.True(known)
	req.True(r.Deleted())
	req.Empty(r.Tasks())
	req.Empty(r.Members())
}
