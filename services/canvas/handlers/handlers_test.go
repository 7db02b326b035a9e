// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/actions"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/dispatcher"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/executor"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/reporter"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/runner"
)

func newTestRouter(t *testing.T) (*gin.Engine, *graph.Store, *dispatcher.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadDefault()
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	store := graph.NewStore()
	exec := executor.New(store, cfg, runner.NewRouter(cfg, nil, runner.NewMockRunner()))
	manager := dispatcher.NewManager(actions.NewNormalizer(cfg), exec, reporter.New(nil, "", nil, reporter.LogSink{}))
	t.Cleanup(manager.CloseAll)

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.GET("/v1/canvas/snapshot", GetSnapshot(store))
	router.GET("/v1/canvas/nodes/:nodeId", GetNode(store))
	router.GET("/v1/canvas/sessions/:sessionId", GetSession(manager))
	router.POST("/v1/canvas/sessions/:sessionId/tool-calls", InjectToolCall(manager))
	router.DELETE("/v1/canvas/sessions/:sessionId", CloseSession(manager))
	return router, store, manager
}

func TestHealthCheck(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetSnapshot(t *testing.T) {
	router, store, _ := newTestRouter(t)
	if _, err := store.AddNode(&datatypes.Node{Label: "图像", Kind: datatypes.KindImage}); err != nil {
		t.Fatalf("seed node: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/canvas/snapshot", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap datatypes.GraphSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Nodes) != 1 || snap.Nodes[0].Label != "图像" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGetNode(t *testing.T) {
	router, store, _ := newTestRouter(t)
	id, _ := store.AddNode(&datatypes.Node{Label: "文本", Kind: datatypes.KindText})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/canvas/nodes/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/canvas/nodes/ghost", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func waitForNodes(t *testing.T, store *graph.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.NodeCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d nodes, got %d", want, store.NodeCount())
}

func TestInjectToolCall(t *testing.T) {
	router, store, _ := newTestRouter(t)

	body := `{"toolCallId":"c1","toolName":"createNode","input":{"type":"image","label":"海报"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/canvas/sessions/s1/tool-calls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	waitForNodes(t, store, 1)

	t.Run("duplicate id rejected without re-execution", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/canvas/sessions/s1/tool-calls", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for suppressed duplicate, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "already dispatched") {
			t.Errorf("expected suppression reason, got %s", w.Body.String())
		}
		time.Sleep(50 * time.Millisecond)
		if store.NodeCount() != 1 {
			t.Errorf("duplicate injection must not re-execute, got %d nodes", store.NodeCount())
		}
	})

	t.Run("bad session id rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/canvas/sessions/.hidden/tool-calls", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/canvas/sessions/s1/tool-calls", strings.NewReader(`{"input":{}}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	router, _, _ := newTestRouter(t)

	t.Run("unknown session", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/canvas/sessions/nope", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	// Create the session by injecting a call, then inspect and close it.
	body := `{"toolCallId":"c1","toolName":"createNode","input":{"type":"text"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/canvas/sessions/live/tool-calls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("inject failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/canvas/sessions/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/canvas/sessions/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on close, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/canvas/sessions/live", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("closing twice must 404, got %d", w.Code)
	}
}
