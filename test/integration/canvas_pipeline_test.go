// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Integration test for the full canvas tool-call pipeline
//
// This test drives the service through its HTTP surface only: inject
// streamed tool calls, wait for the asynchronous pipeline to apply them,
// and verify the resulting graph through the snapshot endpoint.

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/actions"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/dispatcher"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/executor"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/reporter"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/routes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/runner"
)

const authSecret = "integration-secret"

func newCanvasServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadDefault()
	require.NoError(t, err)

	store := graph.NewStore()
	exec := executor.New(store, cfg, runner.NewRouter(cfg, nil, runner.NewMockRunner()))
	manager := dispatcher.NewManager(actions.NewNormalizer(cfg), exec, reporter.New(nil, "", nil, reporter.LogSink{}))
	t.Cleanup(manager.CloseAll)

	router := gin.New()
	routes.SetupRoutes(router, store, manager, authSecret)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+authSecret)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func injectCall(t *testing.T, server *httptest.Server, session, callId, tool string, input map[string]any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"toolCallId": callId,
		"toolName":   tool,
		"input":      input,
	})
	require.NoError(t, err)

	resp, _ := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/v1/canvas/sessions/%s/tool-calls", server.URL, session), string(payload))
	return resp
}

func fetchSnapshot(t *testing.T, server *httptest.Server) datatypes.GraphSnapshot {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/canvas/snapshot", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+authSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap datatypes.GraphSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func waitForSnapshot(t *testing.T, server *httptest.Server, ok func(datatypes.GraphSnapshot) bool) datatypes.GraphSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := fetchSnapshot(t, server)
		if ok(snap) {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the pipeline to apply the injected calls")
	return datatypes.GraphSnapshot{}
}

func TestCanvasPipeline(t *testing.T) {
	server := newCanvasServer(t)

	t.Run("Auth_Required", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/v1/canvas/snapshot")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Health_And_Metrics_Are_Open", func(t *testing.T) {
		for _, path := range []string{"/health", "/metrics"} {
			resp, err := http.Get(server.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	})

	t.Run("Create_Then_Run_Node", func(t *testing.T) {
		resp := injectCall(t, server, "s1", "call-1", "createNode", map[string]any{
			"type":  "image",
			"label": "海报",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		snap := waitForSnapshot(t, server, func(s datatypes.GraphSnapshot) bool {
			return len(s.Nodes) == 1
		})
		nodeId := snap.Nodes[0].Id
		assert.Equal(t, "海报", snap.Nodes[0].Label)

		resp = injectCall(t, server, "s1", "call-2", "runNode", map[string]any{
			"nodeId": nodeId,
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		snap = waitForSnapshot(t, server, func(s datatypes.GraphSnapshot) bool {
			return len(s.Nodes) == 1 && s.Nodes[0].Status == datatypes.StatusSuccess
		})
		assert.Contains(t, snap.Nodes[0].Data, "url")
	})

	t.Run("Duplicate_Call_Id_Is_Suppressed", func(t *testing.T) {
		resp := injectCall(t, server, "s1", "call-1", "createNode", map[string]any{
			"type":  "image",
			"label": "重复",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		time.Sleep(100 * time.Millisecond)
		snap := fetchSnapshot(t, server)
		assert.Len(t, snap.Nodes, 1, "replayed call id must not create a second node")
	})

	t.Run("Connect_Nodes", func(t *testing.T) {
		resp := injectCall(t, server, "s1", "call-3", "createNode", map[string]any{
			"type":  "text",
			"label": "脚本",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		snap := waitForSnapshot(t, server, func(s datatypes.GraphSnapshot) bool {
			return len(s.Nodes) == 2
		})

		var sourceId, targetId string
		for _, node := range snap.Nodes {
			if node.Label == "脚本" {
				sourceId = node.Id
			} else {
				targetId = node.Id
			}
		}

		resp = injectCall(t, server, "s1", "call-4", "connectNodes", map[string]any{
			"sourceNodeId": sourceId,
			"targetNodeId": targetId,
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		snap = waitForSnapshot(t, server, func(s datatypes.GraphSnapshot) bool {
			return len(s.Edges) == 1
		})
		assert.Equal(t, sourceId, snap.Edges[0].Source)
		assert.Equal(t, targetId, snap.Edges[0].Target)
	})

	t.Run("Session_Close_Discards_Ledger", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodDelete, server.URL+"/v1/canvas/sessions/s1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "s1", body["closed_session_id"])

		// A fresh session accepts the recycled call id, and the graph the
		// previous session built is still there.
		resp = injectCall(t, server, "s1", "call-1", "createNode", map[string]any{
			"type":  "image",
			"label": "新海报",
		})
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		waitForSnapshot(t, server, func(s datatypes.GraphSnapshot) bool {
			return len(s.Nodes) == 3
		})
	})
}
