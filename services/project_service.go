package services

import (
	"bytes"
	"collab-live/auth"
	"collab-live/bridge"
	"collab-live/contract"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/zeebo/blake3"
)

type IProjectService interface {
	CreateProject(ctx context.Context, caller domain.IdentityID, req CreateProjectRequest) (domain.Project, error)
	GetProject(caller domain.IdentityID, projectID string) (domain.Project, error)
	ListProjects(caller domain.IdentityID) ([]domain.Project, error)
	UpdateProject(ctx context.Context, caller domain.IdentityID, projectID string, req UpdateProjectRequest) (domain.Project, error)
	DeleteProject(ctx context.Context, caller domain.IdentityID, projectID string) error
	AddTeamMember(ctx context.Context, caller domain.IdentityID, projectID string, req AddMemberRequest) (domain.Member, error)
	RemoveTeamMember(ctx context.Context, caller domain.IdentityID, projectID string, userID domain.IdentityID) error
	AddTask(ctx context.Context, caller domain.IdentityID, projectID string, req AddTaskRequest) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, caller domain.IdentityID, projectID, taskID string, req UpdateTaskStatusRequest) (domain.Task, error)
	SendMessage(ctx context.Context, caller domain.IdentityID, projectID string, req SendMessageRequest) (domain.Message, error)
	GetMessages(caller domain.IdentityID, projectID string, cursor *string) ([]domain.Message, *string, error)
	SearchMessages(caller domain.IdentityID, projectID, query string, limit int) ([]domain.Message, error)
	UploadFile(ctx context.Context, caller domain.IdentityID, projectID, name string, r io.Reader) (domain.File, error)
	DeleteFile(ctx context.Context, caller domain.IdentityID, projectID, fileID string) error
}

type ProjectServiceConfig struct {
	MaxContentLength int
	MaxUploadBytes   int64
}

// ProjectService holds the business rules of projects. Every mutation goes
// through the bridge so the project room hears about it once committed.
type ProjectService struct {
	log       *slog.Logger
	projects  contract.ProjectRepository
	blobs     contract.BlobStore
	index     contract.MessageIndex
	moderator contract.Moderator
	bridge    *bridge.Bridge
	config    ProjectServiceConfig

	// Serializes read-modify-write sequences on tasks and teams.
	mu  sync.Mutex
	now func() time.Time
}

func NewProjectService(log *slog.Logger, projects contract.ProjectRepository, blobs contract.BlobStore,
	index contract.MessageIndex, moderator contract.Moderator, b *bridge.Bridge, config ProjectServiceConfig) *ProjectService {
	return &ProjectService{
		log:       log,
		projects:  projects,
		blobs:     blobs,
		index:     index,
		moderator: moderator,
		bridge:    b,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateProject makes the caller the owner and its first admin.
// Nobody can be in the room yet so nothing is published.
func (s *ProjectService) CreateProject(_ context.Context, caller domain.IdentityID, req CreateProjectRequest) (domain.Project, error) {
	if err := auth.Validate(req); err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	now := s.now()
	project := domain.Project{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Owner:       caller,
		CreatedAt:   now,
	}
	project.Members = []domain.Member{{ID: caller, ProjectID: project.ID, Role: domain.RoleAdmin, JoinedAt: now}}
	if err := s.projects.CreateProject(project); err != nil {
		return domain.Project{}, err
	}
	s.log.Info("Project created", "project_id", project.ID, "owner", caller)
	return project, nil
}

// GetProject is the read path clients use to recover missed events.
func (s *ProjectService) GetProject(caller domain.IdentityID, projectID string) (domain.Project, error) {
	return s.accessible(caller, projectID)
}

func (s *ProjectService) ListProjects(caller domain.IdentityID) ([]domain.Project, error) {
	return s.projects.ListProjects(caller)
}

// UpdateProject edits title and description. Owner and admins only.
func (s *ProjectService) UpdateProject(ctx context.Context, caller domain.IdentityID, projectID string,
	req UpdateProjectRequest) (domain.Project, error) {
	if err := auth.Validate(req); err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if req.Title == nil && req.Description == nil {
		return domain.Project{}, fmt.Errorf("%w: nothing to update", errors.ErrInvalidInput)
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return domain.Project{}, fmt.Errorf("%w: title cannot be blank", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.CanManageMembers(caller) {
		return domain.Project{}, errors.ErrAccessDenied
	}
	if req.Title != nil {
		project.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	project.UpdatedAt = s.now()

	return bridge.CommitAs(ctx, s.bridge, project.Room(), event.ProjectUpdatedType,
		func(context.Context) (domain.Project, error) {
			return project, s.projects.UpdateProject(project.Header())
		},
		func(p domain.Project) any {
			return event.ProjectUpdated{ProjectID: p.ID, Title: p.Title, Description: p.Description, UpdatedAt: p.UpdatedAt}
		})
}

// DeleteProject is reserved to the owner. The records go in one write; blobs
// and index entries are cleaned up afterwards and a failure there is only logged.
func (s *ProjectService) DeleteProject(ctx context.Context, caller domain.IdentityID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.IsOwner(caller) {
		return errors.ErrAccessDenied
	}

	_, err = bridge.CommitAs(ctx, s.bridge, project.Room(), event.ProjectDeletedType,
		func(context.Context) (string, error) {
			return projectID, s.projects.DeleteProject(projectID)
		},
		func(id string) any { return event.ProjectDeleted{ProjectID: id} })
	if err != nil {
		return err
	}

	for _, file := range project.Files {
		if err := s.blobs.Delete(ctx, blobKey(file)); err != nil {
			s.log.Warn("Blob not deleted", "project_id", projectID, "file_id", file.ID, "error", err)
		}
	}
	ids := lo.Map(project.Messages, func(m domain.Message, _ int) string { return m.ID })
	if err := s.index.Remove(ids); err != nil {
		s.log.Warn("Messages not removed from index", "project_id", projectID, "error", err)
	}
	s.log.Info("Project deleted", "project_id", projectID, "owner", caller)
	return nil
}

func (s *ProjectService) AddTeamMember(ctx context.Context, caller domain.IdentityID, projectID string,
	req AddMemberRequest) (domain.Member, error) {
	if err := auth.Validate(req); err != nil {
		return domain.Member{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	role := lo.Ternary(req.Role == "", domain.RoleMember, req.Role)
	if !role.IsValid() {
		return domain.Member{}, fmt.Errorf("%w: unknown role %q", errors.ErrInvalidInput, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return domain.Member{}, err
	}
	if !project.CanManageMembers(caller) {
		return domain.Member{}, errors.ErrAccessDenied
	}
	if _, ok := project.Member(req.UserID); ok {
		return domain.Member{}, errors.ErrAlreadyMember
	}

	return bridge.Commit(ctx, s.bridge, project.Room(), event.TeamMemberAddedType,
		func(context.Context) (domain.Member, error) {
			member := domain.Member{ID: req.UserID, ProjectID: projectID, Role: role, JoinedAt: s.now()}
			return member, s.projects.SaveMember(member)
		})
}

func (s *ProjectService) RemoveTeamMember(ctx context.Context, caller domain.IdentityID, projectID string,
	userID domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.CanManageMembers(caller) {
		return errors.ErrAccessDenied
	}
	if project.IsOwner(userID) {
		return errors.ErrCannotRemoveOwner
	}

	_, err = bridge.CommitAs(ctx, s.bridge, project.Room(), event.TeamMemberRemovedType,
		func(context.Context) (domain.IdentityID, error) {
			return userID, s.projects.DeleteMember(projectID, userID)
		},
		func(id domain.IdentityID) any { return event.MemberRemoved{ProjectID: projectID, UserID: id} })
	return err
}

func (s *ProjectService) AddTask(ctx context.Context, caller domain.IdentityID, projectID string,
	req AddTaskRequest) (domain.Task, error) {
	if err := auth.Validate(req); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	status := lo.Ternary(req.Status == "", domain.TaskTodo, req.Status)
	if !status.IsValid() {
		return domain.Task{}, fmt.Errorf("%w: unknown status %q", errors.ErrInvalidInput, status)
	}
	project, err := s.accessible(caller, projectID)
	if err != nil {
		return domain.Task{}, err
	}

	return bridge.Commit(ctx, s.bridge, project.Room(), event.TaskAddedType,
		func(context.Context) (domain.Task, error) {
			now := s.now()
			task := domain.Task{
				ID:          uuid.NewString(),
				ProjectID:   projectID,
				Title:       strings.TrimSpace(req.Title),
				Description: req.Description,
				Status:      status,
				AssignedTo:  req.AssignedTo,
				DueDate:     req.DueDate,
				Version:     1,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			return task, s.projects.SaveTask(task)
		})
}

// UpdateTaskStatus bumps the task version so clients can tell a newer
// snapshot from a stale one.
func (s *ProjectService) UpdateTaskStatus(ctx context.Context, caller domain.IdentityID, projectID, taskID string,
	req UpdateTaskStatusRequest) (domain.Task, error) {
	if !req.Status.IsValid() {
		return domain.Task{}, fmt.Errorf("%w: unknown status %q", errors.ErrInvalidInput, req.Status)
	}
	project, err := s.accessible(caller, projectID)
	if err != nil {
		return domain.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.projects.GetTask(projectID, taskID)
	if err != nil {
		return domain.Task{}, err
	}

	return bridge.Commit(ctx, s.bridge, project.Room(), event.TaskUpdatedType,
		func(context.Context) (domain.Task, error) {
			task.Status = req.Status
			task.Version++
			task.UpdatedAt = s.now()
			return task, s.projects.SaveTask(task)
		})
}

// SendMessage censors the content and tags its language before persisting.
// Indexing happens after the write and never fails the message.
func (s *ProjectService) SendMessage(ctx context.Context, caller domain.IdentityID, projectID string,
	req SendMessageRequest) (domain.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && req.File == nil {
		return domain.Message{}, fmt.Errorf("%w: empty message", errors.ErrInvalidInput)
	}
	if s.config.MaxContentLength > 0 && len(content) > s.config.MaxContentLength {
		return domain.Message{}, fmt.Errorf("%w: content longer than %d bytes",
			errors.ErrInvalidInput, s.config.MaxContentLength)
	}
	project, err := s.accessible(caller, projectID)
	if err != nil {
		return domain.Message{}, err
	}

	censored, words := s.moderator.Censor(content)
	if len(words) > 0 {
		s.log.Debug("Message censored", "project_id", projectID, "sender", caller, "words", len(words))
	}

	message, err := bridge.Commit(ctx, s.bridge, project.Room(), event.MessageReceivedType,
		func(context.Context) (domain.Message, error) {
			message := domain.Message{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				SenderID:  caller,
				Content:   censored,
				Lang:      detectLang(censored),
				File:      req.File,
				CreatedAt: s.now(),
			}
			return message, s.projects.SaveMessage(message)
		})
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.index.Index(message); err != nil {
		s.log.Warn("Message not indexed", "message_id", message.ID, "error", err)
	}
	return message, nil
}

func detectLang(content string) string {
	if content == "" {
		return ""
	}
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

func (s *ProjectService) GetMessages(caller domain.IdentityID, projectID string, cursor *string) ([]domain.Message, *string, error) {
	if _, err := s.accessible(caller, projectID); err != nil {
		return nil, nil, err
	}
	return s.projects.GetMessages(projectID, cursor)
}

// SearchMessages returns matching messages, best match first.
func (s *ProjectService) SearchMessages(caller domain.IdentityID, projectID, query string, limit int) ([]domain.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", errors.ErrInvalidInput)
	}
	project, err := s.accessible(caller, projectID)
	if err != nil {
		return nil, err
	}
	ids, err := s.index.Search(projectID, query, lo.Clamp(limit, 1, 100))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(project.Messages, func(m domain.Message) string { return m.ID })
	return lo.FilterMap(ids, func(id string, _ int) (domain.Message, bool) {
		m, ok := byID[id]
		return m, ok
	}), nil
}

// UploadFile stores the blob then records its metadata with a blake3 checksum.
// A blob whose metadata cannot be saved is removed again.
func (s *ProjectService) UploadFile(ctx context.Context, caller domain.IdentityID, projectID, name string,
	r io.Reader) (domain.File, error) {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return domain.File{}, fmt.Errorf("%w: missing file name", errors.ErrInvalidInput)
	}
	project, err := s.accessible(caller, projectID)
	if err != nil {
		return domain.File{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxUploadBytes+1))
	if err != nil {
		return domain.File{}, err
	}
	switch {
	case len(data) == 0:
		return domain.File{}, errors.ErrEmptyUpload
	case int64(len(data)) > s.config.MaxUploadBytes:
		return domain.File{}, errors.ErrUploadTooLarge
	}
	sum := blake3.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	return bridge.Commit(ctx, s.bridge, project.Room(), event.FileUploadedType,
		func(ctx context.Context) (domain.File, error) {
			file := domain.File{ID: uuid.NewString(), ProjectID: projectID, Name: name}
			key := blobKey(file)
			size, err := s.blobs.Put(ctx, key, bytes.NewReader(data))
			if err != nil {
				return domain.File{}, err
			}
			file.URL = s.blobs.URL(key)
			file.MimeType = mimetype.Detect(data).String()
			file.Size = size
			file.Checksum = checksum
			file.UploadedBy = caller
			file.UploadedAt = s.now()
			if err := s.projects.SaveFile(file); err != nil {
				if delErr := s.blobs.Delete(ctx, key); delErr != nil {
					s.log.Warn("Orphan blob left behind", "key", key, "error", delErr)
				}
				return domain.File{}, err
			}
			return file, nil
		})
}

// DeleteFile removes the metadata first; the blob goes afterwards and a
// failure there only leaves an unreachable blob.
func (s *ProjectService) DeleteFile(ctx context.Context, caller domain.IdentityID, projectID, fileID string) error {
	project, err := s.accessible(caller, projectID)
	if err != nil {
		return err
	}
	file, err := s.projects.GetFile(projectID, fileID)
	if err != nil {
		return err
	}

	_, err = bridge.CommitAs(ctx, s.bridge, project.Room(), event.FileDeletedType,
		func(context.Context) (domain.File, error) {
			return file, s.projects.DeleteFile(projectID, fileID)
		},
		func(f domain.File) any { return event.FileDeleted{ProjectID: projectID, FileID: f.ID} })
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, blobKey(file)); err != nil {
		s.log.Warn("Blob not deleted", "file_id", fileID, "error", err)
	}
	return nil
}

func blobKey(file domain.File) string {
	return file.ProjectID + "/" + file.ID + "/" + file.Name
}

func (s *ProjectService) accessible(caller domain.IdentityID, projectID string) (domain.Project, error) {
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.HasAccess(caller) {
		return domain.Project{}, errors.ErrAccessDenied
	}
	return project, nil
}
