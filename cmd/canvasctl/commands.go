// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/events"
)

var (
	serverURL string
	authToken string
	sessionId string
	callId    string
	callInput string

	rootCmd = &cobra.Command{
		Use:   "canvasctl",
		Short: "A CLI to inspect and drive the Aleutian canvas service",
		Long: `Canvasctl talks to a running canvas service: dump the graph,
inspect nodes, inject tool calls, and tail a raw event stream.`,
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Print every node and edge on the canvas as JSON",
		Run:   runSnapshot,
	}
	nodeCmd = &cobra.Command{
		Use:   "node [node_id]",
		Short: "Print a single canvas node as JSON",
		Args:  cobra.ExactArgs(1),
		Run:   runNode,
	}
	callCmd = &cobra.Command{
		Use:   "call [tool_name]",
		Short: "Inject a tool call into a session's pipeline",
		Long: `Sends one synthetic tool-call frame through the full pipeline.
The input payload is given with --input as a JSON object, for example:

  canvasctl call createNode --input '{"type":"image","label":"海报"}'`,
		Args: cobra.ExactArgs(1),
		Run:  runCall,
	}

	// Session administration commands
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage canvas sessions",
	}
	sessionInfoCmd = &cobra.Command{
		Use:   "info [session_id]",
		Short: "Show a session's tracked tool-call count",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionInfo,
	}
	sessionCloseCmd = &cobra.Command{
		Use:   "close [session_id]",
		Short: "Close a session and discard its dedup ledger",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionClose,
	}

	tailCmd = &cobra.Command{
		Use:   "tail [stream_url]",
		Short: "Subscribe to a tool event stream and print decoded frames",
		Args:  cobra.ExactArgs(1),
		Run:   runTail,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:12230", "Canvas service base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("CANVAS_AUTH_SECRET"), "Bearer token for the canvas service")

	callCmd.Flags().StringVar(&sessionId, "session", "default", "Session to inject the call into")
	callCmd.Flags().StringVar(&callId, "id", "", "Tool call id (random when omitted)")
	callCmd.Flags().StringVar(&callInput, "input", "{}", "Tool arguments as a JSON object")

	sessionCmd.AddCommand(sessionInfoCmd, sessionCloseCmd)
	rootCmd.AddCommand(snapshotCmd, nodeCmd, callCmd, sessionCmd, tailCmd)
}

// doRequest performs one authenticated request and prints the body as
// indented JSON.
func doRequest(method, path string, body []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error calling canvas service: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}
	if resp.StatusCode >= 300 {
		log.Fatalf("Canvas service returned %d: %s", resp.StatusCode, string(raw))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}

func runSnapshot(cmd *cobra.Command, args []string) {
	doRequest(http.MethodGet, "/v1/canvas/snapshot", nil)
}

func runNode(cmd *cobra.Command, args []string) {
	doRequest(http.MethodGet, "/v1/canvas/nodes/"+args[0], nil)
}

func runCall(cmd *cobra.Command, args []string) {
	var input map[string]any
	if err := json.Unmarshal([]byte(callInput), &input); err != nil {
		log.Fatalf("Error parsing --input: %v", err)
	}
	if callId == "" {
		callId = uuid.NewString()
	}

	body, err := json.Marshal(map[string]any{
		"toolCallId": callId,
		"toolName":   args[0],
		"input":      input,
	})
	if err != nil {
		log.Fatalf("Error encoding request: %v", err)
	}
	doRequest(http.MethodPost, "/v1/canvas/sessions/"+sessionId+"/tool-calls", body)
}

func runSessionInfo(cmd *cobra.Command, args []string) {
	doRequest(http.MethodGet, "/v1/canvas/sessions/"+args[0], nil)
}

func runSessionClose(cmd *cobra.Command, args []string) {
	doRequest(http.MethodDelete, "/v1/canvas/sessions/"+args[0], nil)
}

func runTail(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	subscriber := events.NewSubscriber(nil, args[0], func() string { return authToken })
	subscription, err := subscriber.Subscribe(ctx, events.Callbacks{
		OnOpen: func() {
			fmt.Fprintln(os.Stderr, "stream connected")
		},
		OnMessage: func(msg datatypes.ToolEventMessage) {
			line, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error encoding frame: %v", err)
				return
			}
			fmt.Println(string(line))
		},
		OnError: func(err error) {
			log.Printf("stream error: %v", err)
			stop()
		},
	})
	if err != nil {
		log.Fatalf("Error subscribing to stream: %v", err)
	}
	defer subscription.Cancel()

	<-ctx.Done()
}
