package client

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"fmt"
	"sync"
)

// Reconciler applies events to local collections. Add and update events
// upsert by id, so a replayed or duplicated event never creates a copy;
// remove events are idempotent.
type Reconciler struct {
	mu       sync.RWMutex
	tasks    *Collection[domain.Task]
	messages *Collection[domain.Message]
	files    *Collection[domain.File]
	members  *Collection[domain.Member]
	direct   *Collection[domain.DirectMessage]
	presence []domain.IdentityID
	project  domain.Project
	deleted  bool
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		tasks:    NewCollection[domain.Task](),
		messages: NewCollection[domain.Message](),
		files:    NewCollection[domain.File](),
		members:  NewCollection[domain.Member](),
		direct:   NewCollection[domain.DirectMessage](),
	}
}

// Apply reports whether the event type is one the reconciler tracks.
func (r *Reconciler) Apply(env event.Envelope) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Type {
	case event.PresenceType:
		var presence []domain.IdentityID
		if err := env.Decode(&presence); err != nil {
			return true, decodeErr(env, err)
		}
		r.presence = presence
	case event.TaskAddedType, event.TaskUpdatedType:
		return true, upsert(env, r.tasks)
	case event.MessageReceivedType:
		return true, upsert(env, r.messages)
	case event.FileUploadedType:
		return true, upsert(env, r.files)
	case event.TeamMemberAddedType:
		return true, upsert(env, r.members)
	case event.DirectMessageType:
		return true, upsert(env, r.direct)
	case event.FileDeletedType:
		var removed event.FileDeleted
		if err := env.Decode(&removed); err != nil {
			return true, decodeErr(env, err)
		}
		r.files.Remove(removed.FileID)
	case event.TeamMemberRemovedType:
		var removed event.MemberRemoved
		if err := env.Decode(&removed); err != nil {
			return true, decodeErr(env, err)
		}
		r.members.Remove(string(removed.UserID))
	case event.ProjectUpdatedType:
		var updated event.ProjectUpdated
		if err := env.Decode(&updated); err != nil {
			return true, decodeErr(env, err)
		}
		// An older edit arriving late never overwrites a newer one.
		if updated.UpdatedAt.Before(r.project.UpdatedAt) {
			return true, nil
		}
		r.project.ID = updated.ProjectID
		r.project.Title = updated.Title
		r.project.Description = updated.Description
		r.project.UpdatedAt = updated.UpdatedAt
	case event.ProjectDeletedType:
		r.tasks.Reset(nil)
		r.messages.Reset(nil)
		r.files.Reset(nil)
		r.members.Reset(nil)
		r.deleted = true
	default:
		return false, nil
	}
	return true, nil
}

// Load seeds the collections from a project snapshot.
func (r *Reconciler) Load(project domain.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.project = project.Header()
	r.deleted = false
	r.tasks.Reset(project.Tasks)
	r.messages.Reset(project.Messages)
	r.files.Reset(project.Files)
	r.members.Reset(project.Members)
}

// Project returns the project header as last loaded or updated.
func (r *Reconciler) Project() domain.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.project
}

// Deleted reports whether the project behind this view was deleted.
func (r *Reconciler) Deleted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deleted
}

func upsert[T Identifiable](env event.Envelope, c *Collection[T]) error {
	var item T
	if err := env.Decode(&item); err != nil {
		return decodeErr(env, err)
	}
	c.Upsert(item)
	return nil
}

func decodeErr(env event.Envelope, err error) error {
	return fmt.Errorf("decode %s payload: %w", env.Type, err)
}

func (r *Reconciler) Tasks() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks.Items()
}

func (r *Reconciler) Task(id string) (domain.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks.Get(id)
}

func (r *Reconciler) Messages() []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.messages.Items()
}

func (r *Reconciler) Files() []domain.File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files.Items()
}

func (r *Reconciler) Members() []domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members.Items()
}

func (r *Reconciler) DirectMessages() []domain.DirectMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.direct.Items()
}

func (r *Reconciler) Presence() []domain.IdentityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.IdentityID(nil), r.presence...)
}
