package server

import (
	"collab-live/auth"
	"collab-live/domain"
	"collab-live/errors"
	"collab-live/services"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type page[T any] struct {
	Items  []T     `json:"items"`
	Cursor *string `json:"cursor,omitempty"`
}

func caller(r *http.Request) domain.IdentityID {
	id, _ := auth.CallerFrom(r.Context())
	return id
}

func cursor(r *http.Request) *string {
	if c := r.URL.Query().Get("cursor"); c != "" {
		return &c
	}
	return nil
}

func (s *Server) presence(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Hub.Presence())
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req services.CreateProjectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	project, err := s.deps.Projects.CreateProject(r.Context(), caller(r), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Projects.ListProjects(caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.deps.Projects.GetProject(caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateProjectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	project, err := s.deps.Projects.UpdateProject(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Projects.DeleteProject(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted successfully"})
}

func (s *Server) addTeamMember(w http.ResponseWriter, r *http.Request) {
	var req services.AddMemberRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	member, err := s.deps.Projects.AddTeamMember(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) removeTeamMember(w http.ResponseWriter, r *http.Request) {
	userID := domain.IdentityID(chi.URLParam(r, "userId"))
	if err := s.deps.Projects.RemoveTeamMember(r.Context(), caller(r), chi.URLParam(r, "id"), userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	var req services.AddTaskRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	task, err := s.deps.Projects.AddTask(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateTaskStatusRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	task, err := s.deps.Projects.UpdateTaskStatus(r.Context(), caller(r),
		chi.URLParam(r, "id"), chi.URLParam(r, "taskId"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req services.SendMessageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	message, err := s.deps.Projects.SendMessage(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	messages, next, err := s.deps.Projects.GetMessages(caller(r), chi.URLParam(r, "id"), cursor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.Message]{Items: messages, Cursor: next})
}

func (s *Server) searchMessages(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, errors.ErrInvalidInput)
			return
		}
		limit = n
	}
	messages, err := s.deps.Projects.SearchMessages(caller(r), chi.URLParam(r, "id"), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// uploadFile reads the multipart field "file".
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, errors.ErrUploadTooLarge)
			return
		}
		s.writeError(w, errors.ErrEmptyUpload)
		return
	}
	defer func() { _ = file.Close() }()

	uploaded, err := s.deps.Projects.UploadFile(r.Context(), caller(r), chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploaded)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Projects.DeleteFile(r.Context(), caller(r), chi.URLParam(r, "id"), chi.URLParam(r, "fileId")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

func (s *Server) sendDirectMessage(w http.ResponseWriter, r *http.Request) {
	var req services.DirectMessageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	receiver := domain.IdentityID(chi.URLParam(r, "receiverId"))
	dm, err := s.deps.Direct.Send(r.Context(), caller(r), receiver, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dm)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	peer := domain.IdentityID(chi.URLParam(r, "peerId"))
	messages, next, err := s.deps.Direct.GetConversation(caller(r), peer, cursor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.DirectMessage]{Items: messages, Cursor: next})
}
