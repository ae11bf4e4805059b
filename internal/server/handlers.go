package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/repo"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

type projectPath struct {
	ProjectID string `path:"projectId"`
}

type sectionPath struct {
	SectionID string `path:"sectionId"`
}

type taskPath struct {
	TaskID string `path:"taskId"`
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, principal, engine.ProjectCreateOptions{
			ID:       input.Body.ID,
			OrgID:    input.Body.OrgID,
			Name:     input.Body.Name,
			Assignee: input.Body.Assignee,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: ProjectResponse{Project: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects visible to the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProjectsResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjects(ctx, principal)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectsResponse `json:"body"`
		}{Body: ProjectsResponse{Projects: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}",
		Summary:     "Get project",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetProject(ctx, principal, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: ProjectResponse{Project: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{projectId}",
		Summary:     "Rename a project or replace its members",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"projectId"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, principal, input.ProjectID, engine.ProjectUpdateOptions{
			Name:     input.Body.Name,
			Assignee: input.Body.Assignee,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: ProjectResponse{Project: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{projectId}",
		Summary:     "Delete a project with its sections and tasks",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, principal, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Project deleted successfully"}}, nil
	})
}

func registerBoard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/board",
		Summary:     "Board view: ordered sections with their tasks",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body domain.Board `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.Board(ctx, principal, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Board `json:"body"`
		}{Body: b}, nil
	})
}

func registerSections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sections",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/sections",
		Summary:     "List sections, creating the defaults on first read",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body SectionsResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSections(ctx, principal, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SectionsResponse `json:"body"`
		}{Body: SectionsResponse{Sections: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-section",
		Method:        http.MethodPost,
		Path:          "/projects/{projectId}/sections",
		Summary:       "Append a section",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"projectId"`
		Body      CreateSectionRequest `json:"body"`
	}) (*struct {
		Body SectionResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sec, err := e.CreateSection(ctx, principal, input.ProjectID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SectionResponse `json:"body"`
		}{Body: SectionResponse{Section: sec}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-section",
		Method:      http.MethodPatch,
		Path:        "/sections/{sectionId}",
		Summary:     "Rename or reorder a section",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		SectionID string               `path:"sectionId"`
		Body      UpdateSectionRequest `json:"body"`
	}) (*struct {
		Body SectionResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Name == nil && input.Body.Order == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name or order is required", nil)
		}
		sec, err := e.UpdateSection(ctx, principal, input.SectionID, engine.SectionUpdate{
			Name:  input.Body.Name,
			Order: input.Body.Order,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SectionResponse `json:"body"`
		}{Body: SectionResponse{Section: sec}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-section",
		Method:      http.MethodDelete,
		Path:        "/sections/{sectionId}",
		Summary:     "Delete an empty, non-default section",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *sectionPath) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSection(ctx, principal, input.SectionID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Section deleted successfully"}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{projectId}/tasks",
		Summary:       "Create task at the end of a section",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"projectId"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		card, err := e.CreateTask(ctx, principal, engine.TaskCreateOptions{
			ID:          input.Body.ID,
			ProjectID:   input.ProjectID,
			SectionID:   stringOrEmpty(input.Body.SectionID),
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Assignee:    input.Body.Assignee,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			DueDate:     input.Body.DueDate,
			Attachments: input.Body.Attachments,
			Subtasks:    input.Body.Subtasks,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: card}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/projects/{projectId}/tasks",
		Summary:     "Update task fields",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"projectId"`
		Body      UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		bodyMap := rawBodyMap(ctx)
		opts := engine.TaskUpdateOptions{
			ProjectID:   input.ProjectID,
			TaskID:      input.Body.TaskID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Assignee:    input.Body.Assignee,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			DueDate:     input.Body.DueDate,
			Attachments: input.Body.Attachments,
			Subtasks:    input.Body.Subtasks,
		}
		if isNullRaw(bodyMap["dueDate"]) {
			cleared := ""
			opts.DueDate = &cleared
		}
		card, err := e.UpdateTask(ctx, principal, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: card}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{taskId}/move",
		Summary:     "Move a task to a section and position",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string          `path:"taskId"`
		Body   MoveTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		card, err := e.MoveTask(ctx, principal, engine.MoveOptions{
			TaskID:    input.TaskID,
			SectionID: input.Body.SectionID,
			Order:     input.Body.Order,
			ProjectID: strings.TrimSpace(input.Body.ProjectID),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: card}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{taskId}",
		Summary:     "Get task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		card, err := e.GetTask(ctx, principal, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: card}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{taskId}",
		Summary:     "Delete task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, principal, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Task deleted successfully"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-history",
		Method:      http.MethodGet,
		Path:        "/tasks/{taskId}/history",
		Summary:     "Status history, oldest first",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.TaskHistory(ctx, principal, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{TaskID: input.TaskID, History: items}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/events",
		Summary:     "List recent events",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"projectId"`
		Type       string `query:"type"`
		EntityKind string `query:"entityKind"`
		EntityID   string `query:"entityId"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, principal, repo.EventFilter{
			ProjectID:  input.ProjectID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Events: []domain.Event{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		resp.Events = append(resp.Events, items...)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List the user directory",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UsersResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UsersResponse `json:"body"`
		}{Body: UsersResponse{Users: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Add or refresh a user",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		Body UpsertUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.UpsertUser(ctx, principal, domain.User{
			UserInfo: domain.UserInfo{
				ID:        input.Body.ID,
				FirstName: input.Body.FirstName,
				LastName:  input.Body.LastName,
				Email:     input.Body.Email,
				PhotoURL:  input.Body.PhotoURL,
			},
			Role: input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{User: u}}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "userId is required", nil)
		}
		role := strings.TrimSpace(input.Body.Role)
		if role == "" {
			u, err := e.Repo.GetUser(ctx, nil, userID)
			switch {
			case err == nil:
				role = u.Role
			case !errors.Is(err, repo.ErrNotFound):
				return nil, handleError(err)
			}
		}
		token, err := signDevToken(authCfg.JWTSecret, userID, strings.TrimSpace(input.Body.OrgID), role)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
