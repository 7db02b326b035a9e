// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import (
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

func TestShouldHandle_OnceAcrossRepeatedDelivery(t *testing.T) {
	l := New()

	released := 0
	for i := 0; i < 5; i++ {
		if l.ShouldHandle("call-1", true) {
			released++
		}
	}
	if released != 1 {
		t.Fatalf("expected exactly one release for 5 deliveries, got %d", released)
	}
	if phase := l.Phase("call-1"); phase != datatypes.CallDispatched {
		t.Errorf("expected dispatched phase, got %s", phase)
	}
}

func TestShouldHandle_PendingFramesDoNotDispatch(t *testing.T) {
	l := New()

	// Arguments still streaming: observed, never released.
	for i := 0; i < 3; i++ {
		if l.ShouldHandle("call-2", false) {
			t.Fatal("incomplete frame must not be released")
		}
	}
	if phase := l.Phase("call-2"); phase != datatypes.CallArgumentsPending {
		t.Errorf("expected arguments-pending, got %s", phase)
	}

	// The completing frame is released exactly once.
	if !l.ShouldHandle("call-2", true) {
		t.Fatal("completing frame must be released")
	}
	if l.ShouldHandle("call-2", true) {
		t.Fatal("redelivery after dispatch must be suppressed")
	}
}

func TestShouldHandle_EmptyIdNeverReleases(t *testing.T) {
	l := New()
	if l.ShouldHandle("", true) {
		t.Error("empty toolCallId must never be released")
	}
	if l.Size() != 0 {
		t.Errorf("empty id must not be tracked, ledger size %d", l.Size())
	}
}

func TestShouldHandle_IndependentIds(t *testing.T) {
	l := New()
	if !l.ShouldHandle("a", true) {
		t.Fatal("first id should release")
	}
	if !l.ShouldHandle("b", true) {
		t.Fatal("second id should release independently")
	}
	if l.Size() != 2 {
		t.Errorf("expected 2 tracked ids, got %d", l.Size())
	}
}

func TestShouldHandle_ConcurrentDeliverySingleRelease(t *testing.T) {
	l := New()

	const workers = 32
	var wg sync.WaitGroup
	releases := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.ShouldHandle("contested", true) {
				releases <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(releases)

	count := 0
	for range releases {
		count++
	}
	if count != 1 {
		t.Fatalf("expected a single release under concurrent delivery, got %d", count)
	}
}
