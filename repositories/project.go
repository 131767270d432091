package repositories

import (
	"collab-live/domain"
	"collab-live/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout, one record per resource so a write never rewrites the project:
//
//	project:{project_id}
//	member:{project_id}:{user_id}
//	task:{project_id}:{task_id}
//	msg:{project_id}:{timestamp_padded}:{message_id}
//	file:{project_id}:{file_id}
const (
	projectPrefix = "project:"
	memberPrefix  = "member:"
	taskPrefix    = "task:"
	messagePrefix = "msg:"
	filePrefix    = "file:"
)

type ProjectRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewProjectRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *ProjectRepository {
	return &ProjectRepository{db: db, log: log, limitMessages: limitMessages}
}

// projectRecord is the project header without its subcollections.
type projectRecord struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Owner       domain.IdentityID `json:"owner"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func newProjectRecord(project domain.Project) projectRecord {
	return projectRecord{
		ID:          project.ID,
		Title:       project.Title,
		Description: project.Description,
		Owner:       project.Owner,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

func projectKey(projectID string) []byte { return []byte(projectPrefix + projectID) }

func memberKey(projectID string, userID domain.IdentityID) []byte {
	return []byte(memberPrefix + projectID + ":" + string(userID))
}

func taskKey(projectID, taskID string) []byte { return []byte(taskPrefix + projectID + ":" + taskID) }

func fileKey(projectID, fileID string) []byte { return []byte(filePrefix + projectID + ":" + fileID) }

// messageKey uses 19-digit zero padding so keys sort chronologically, the
// message id breaks ties between messages of the same nanosecond.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", messagePrefix, message.ProjectID,
		message.CreatedAt.UnixNano(), message.ID))
}

// CreateProject persists the header and the initial team members atomically.
func (r *ProjectRepository) CreateProject(project domain.Project) error {
	header, err := marshal(newProjectRecord(project))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(projectKey(project.ID), header); err != nil {
			return err
		}
		for _, member := range project.Members {
			if err := setRecord(txn, memberKey(project.ID, member.ID), member); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProject assembles the project and all its subcollections from one read transaction.
func (r *ProjectRepository) GetProject(projectID string) (domain.Project, error) {
	var project domain.Project
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		project, err = r.loadProject(txn, projectID)
		if err != nil {
			return err
		}
		if project.Tasks, err = scan[domain.Task](txn, taskPrefix+projectID+":"); err != nil {
			return err
		}
		if project.Messages, err = scan[domain.Message](txn, messagePrefix+projectID+":"); err != nil {
			return err
		}
		project.Files, err = scan[domain.File](txn, filePrefix+projectID+":")
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}

	slices.SortFunc(project.Tasks, func(a, b domain.Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	slices.SortFunc(project.Files, func(a, b domain.File) int { return a.UploadedAt.Compare(b.UploadedAt) })
	return project, nil
}

// ListProjects returns the headers and teams of every project the identity
// owns or belongs to, newest first.
func (r *ProjectRepository) ListProjects(identity domain.IdentityID) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(projectPrefix)
		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), projectPrefix))
		}
		for _, id := range ids {
			project, err := r.loadProject(txn, id)
			if err != nil {
				return err
			}
			if project.HasAccess(identity) {
				projects = append(projects, project)
			}
		}
		return nil
	})
	slices.SortFunc(projects, func(a, b domain.Project) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return projects, err
}

func (r *ProjectRepository) loadProject(txn *badger.Txn, projectID string) (domain.Project, error) {
	var header projectRecord
	if err := getRecord(txn, projectKey(projectID), &header); err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.Project{}, errors.ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	members, err := scan[domain.Member](txn, memberPrefix+projectID+":")
	if err != nil {
		return domain.Project{}, err
	}
	slices.SortFunc(members, func(a, b domain.Member) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return domain.Project{
		ID:          header.ID,
		Title:       header.Title,
		Description: header.Description,
		Owner:       header.Owner,
		CreatedAt:   header.CreatedAt,
		UpdatedAt:   header.UpdatedAt,
		Members:     members,
	}, nil
}

// UpdateProject rewrites the header of an existing project. Owner and
// creation date are kept from the stored record.
func (r *ProjectRepository) UpdateProject(project domain.Project) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var stored projectRecord
		if err := getRecord(txn, projectKey(project.ID), &stored); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrProjectNotFound
			}
			return err
		}
		stored.Title = project.Title
		stored.Description = project.Description
		stored.UpdatedAt = project.UpdatedAt
		return setRecord(txn, projectKey(project.ID), stored)
	})
}

// DeleteProject removes the header and every member, task, message and file
// record of the project in a single transaction.
func (r *ProjectRepository) DeleteProject(projectID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(projectID)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrProjectNotFound
			}
			return err
		}
		keys := [][]byte{projectKey(projectID)}
		for _, prefix := range []string{memberPrefix, taskPrefix, messagePrefix, filePrefix} {
			keys = append(keys, keysUnder(txn, prefix+projectID+":")...)
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		r.log.Debug("Project records deleted", "project_id", projectID, "keys", len(keys))
		return nil
	})
	if stderrors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("project %s too large to delete at once: %w", projectID, err)
	}
	return err
}

func (r *ProjectRepository) SaveMember(member domain.Member) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, memberKey(member.ProjectID, member.ID), member)
	})
}

func (r *ProjectRepository) DeleteMember(projectID string, userID domain.IdentityID) error {
	return r.deleteExisting(memberKey(projectID, userID), errors.ErrMemberNotFound)
}

// SaveTask inserts or replaces a task.
func (r *ProjectRepository) SaveTask(task domain.Task) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, taskKey(task.ProjectID, task.ID), task)
	})
}

func (r *ProjectRepository) GetTask(projectID, taskID string) (domain.Task, error) {
	var task domain.Task
	err := r.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, taskKey(projectID, taskID), &task)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Task{}, errors.ErrTaskNotFound
	}
	return task, err
}

func (r *ProjectRepository) SaveMessage(message domain.Message) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, messageKey(message), message)
	})
}

// GetMessages pages through a project's messages from the newest one.
// Passing the returned cursor back resumes right after the last message read;
// a nil cursor means the history is exhausted.
func (r *ProjectRepository) GetMessages(projectID string, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var next *string
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		messages, next, err = newestFirst[domain.Message](txn, messagePrefix+projectID+":", cursor, r.limitMessages)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if next != nil {
		r.log.Debug(fmt.Sprintf("Maximum of %d message reached", *r.limitMessages))
	}
	return messages, next, nil
}

func (r *ProjectRepository) SaveFile(file domain.File) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, fileKey(file.ProjectID, file.ID), file)
	})
}

func (r *ProjectRepository) GetFile(projectID, fileID string) (domain.File, error) {
	var file domain.File
	err := r.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, fileKey(projectID, fileID), &file)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.File{}, errors.ErrFileNotFound
	}
	return file, err
}

func (r *ProjectRepository) DeleteFile(projectID, fileID string) error {
	return r.deleteExisting(fileKey(projectID, fileID), errors.ErrFileNotFound)
}

func (r *ProjectRepository) deleteExisting(key []byte, notFound error) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return notFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

func setRecord(txn *badger.Txn, key []byte, v any) error {
	bytes, err := marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

func getRecord(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(value []byte) error { return unmarshal(value, v) })
}

// keysUnder collects the keys under prefix without reading their values.
func keysUnder(txn *badger.Txn, prefix string) [][]byte {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var keys [][]byte
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// scan decodes every record under prefix in key order.
func scan[T any](txn *badger.Txn, prefix string) ([]T, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var out []T
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var record T
		if err := it.Item().Value(func(value []byte) error { return unmarshal(value, &record) }); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}
