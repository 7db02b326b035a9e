// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

func sseServer(t *testing.T, records []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing Accept header")
		}
		if req.Header.Get("Authorization") == "" {
			t.Errorf("missing Authorization header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, record := range records {
			fmt.Fprintf(w, "data: %s\n\n", record)
			flusher.Flush()
		}
	}))
}

func TestSubscribe_NoCredentialNoConnection(t *testing.T) {
	attempted := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&attempted, 1)
	}))
	defer server.Close()

	s := NewSubscriber(server.Client(), server.URL, func() string { return "" })
	_, err := s.Subscribe(context.Background(), Callbacks{OnMessage: func(datatypes.ToolEventMessage) {}})
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if atomic.LoadInt32(&attempted) != 0 {
		t.Error("no HTTP request may be made without a credential")
	}
}

func TestSubscribe_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	opened := int32(0)
	s := NewSubscriber(server.Client(), server.URL, func() string { return "tok" })
	_, err := s.Subscribe(context.Background(), Callbacks{
		OnOpen:    func() { atomic.AddInt32(&opened, 1) },
		OnMessage: func(datatypes.ToolEventMessage) {},
	})

	var connErr *ConnError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnError, got %v", err)
	}
	if connErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", connErr.StatusCode)
	}
	if atomic.LoadInt32(&opened) != 0 {
		t.Error("OnOpen must not fire on a failed connection")
	}
}

func TestSubscribe_DeliversMessagesAfterSingleOpen(t *testing.T) {
	server := sseServer(t, []string{
		`{"type":"tool-call","toolCallId":"c1","toolName":"createNode"}`,
		`{"type":"tool-call","toolCallId":"c2","toolName":"runNode"}`,
	})
	defer server.Close()

	opened := int32(0)
	messages := make(chan datatypes.ToolEventMessage, 4)

	s := NewSubscriber(server.Client(), server.URL, func() string { return "tok" })
	sub, err := s.Subscribe(context.Background(), Callbacks{
		OnOpen:    func() { atomic.AddInt32(&opened, 1) },
		OnMessage: func(msg datatypes.ToolEventMessage) { messages <- msg },
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-messages:
			got = append(got, msg.ToolCallId)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}
	if got[0] != "c1" || got[1] != "c2" {
		t.Errorf("messages out of order: %v", got)
	}
	if atomic.LoadInt32(&opened) != 1 {
		t.Errorf("OnOpen must fire exactly once, fired %d times", opened)
	}

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop after server EOF")
	}
}

func TestSubscription_CancelSuppressesCallbacks(t *testing.T) {
	streaming := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"tool-call\",\"toolCallId\":\"c1\",\"toolName\":\"runNode\"}\n\n")
		flusher.Flush()
		close(streaming)
		// Hold the stream open until the client goes away.
		<-req.Context().Done()
	}))
	defer server.Close()

	messages := make(chan datatypes.ToolEventMessage, 1)
	errored := int32(0)

	s := NewSubscriber(server.Client(), server.URL, func() string { return "tok" })
	sub, err := s.Subscribe(context.Background(), Callbacks{
		OnMessage: func(msg datatypes.ToolEventMessage) { messages <- msg },
		OnError:   func(error) { atomic.AddInt32(&errored, 1) },
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	<-streaming
	select {
	case <-messages:
	case <-time.After(5 * time.Second):
		t.Fatal("first message never arrived")
	}

	sub.Cancel()
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop after cancel")
	}

	if atomic.LoadInt32(&errored) != 0 {
		t.Error("cancellation must not surface as an error callback")
	}
}

func TestSubscription_ParentContextCancelSuppressesCallbacks(t *testing.T) {
	streaming := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"tool-call\",\"toolCallId\":\"c1\",\"toolName\":\"runNode\"}\n\n")
		flusher.Flush()
		close(streaming)
		<-req.Context().Done()
	}))
	defer server.Close()

	messages := make(chan datatypes.ToolEventMessage, 1)
	errored := int32(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSubscriber(server.Client(), server.URL, func() string { return "tok" })
	sub, err := s.Subscribe(ctx, Callbacks{
		OnMessage: func(msg datatypes.ToolEventMessage) { messages <- msg },
		OnError:   func(error) { atomic.AddInt32(&errored, 1) },
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	<-streaming
	select {
	case <-messages:
	case <-time.After(5 * time.Second):
		t.Fatal("first message never arrived")
	}

	// Cancelling the parent context must behave exactly like Cancel: the
	// read abort it causes never reaches OnError.
	cancel()
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop after parent cancellation")
	}

	if atomic.LoadInt32(&errored) != 0 {
		t.Error("parent context cancellation must not surface as an error callback")
	}
}
