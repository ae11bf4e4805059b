package taskboardsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoveTaskSendsTargetAndDecodesTask(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"task":{"id":"t1","projectId":"p1","sectionId":"s2","title":"a","assignee":[],"assigneeInfo":[],"status":"pending","statusHistory":[],"order":0}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "p1")
	c.APIKey = "k"
	task, err := c.MoveTask(context.Background(), "t1", "s2", 0)
	require.NoError(t, err)
	require.Equal(t, "PATCH /v1/tasks/t1/move", gotPath)
	require.Equal(t, "k", gotKey)
	require.Equal(t, map[string]any{"sectionId": "s2", "order": float64(0), "projectId": "p1"}, gotBody)
	require.Equal(t, "s2", *task.SectionID)
}

func TestMoveTaskWithoutSectionOmitsIt(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		io.WriteString(w, `{"task":{"id":"t1"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "p1").MoveTask(context.Background(), "t1", "", 3)
	require.NoError(t, err)
	require.NotContains(t, gotBody, "sectionId")
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":"conflict","message":"section still has tasks","details":{"task_count":2}}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "p1")
	c.BearerToken = "tok"
	err := c.DeleteSection(context.Background(), "s1")
	require.Error(t, err)
	require.Equal(t, "Bearer tok", gotAuth)
	require.True(t, IsCode(err, "conflict"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.EqualValues(t, 2, apiErr.Details["task_count"])
}

func TestUpdateTaskFlattensPatch(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		io.WriteString(w, `{"task":{"id":"t1","status":"completed"}}`)
	}))
	defer srv.Close()

	status := "completed"
	task, err := New(srv.URL, "p1").UpdateTask(context.Background(), "t1", TaskPatch{Status: &status})
	require.NoError(t, err)
	require.Equal(t, "completed", task.Status)
	require.Equal(t, "/v1/projects/p1/tasks", gotPath)
	require.Equal(t, map[string]any{"taskId": "t1", "status": "completed"}, gotBody)
}
