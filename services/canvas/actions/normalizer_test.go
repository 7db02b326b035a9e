// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package actions

import (
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	cfg, err := config.LoadDefault()
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	return NewNormalizer(cfg)
}

func mustCreate(t *testing.T, n *Normalizer, input map[string]any) datatypes.CreateNodeAction {
	t.Helper()
	action, err := n.Normalize(datatypes.ToolCreateNode, input)
	if err != nil {
		t.Fatalf("normalize createNode: %v", err)
	}
	create, ok := action.(datatypes.CreateNodeAction)
	if !ok {
		t.Fatalf("expected CreateNodeAction, got %T", action)
	}
	return create
}

func TestNormalize_UnknownTool(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.Normalize("summonDragon", map[string]any{})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "summonDragon") {
		t.Errorf("error should name the tool: %v", err)
	}
}

func TestNormalize_PayloadUnwrapSiblingsWin(t *testing.T) {
	n := newTestNormalizer(t)
	create := mustCreate(t, n, map[string]any{
		"label": "顶层标签",
		"payload": map[string]any{
			"type":  "image",
			"label": "内层标签",
		},
	})
	if create.Kind != datatypes.KindImage {
		t.Errorf("payload type should apply, got %s", create.Kind)
	}
	if create.Label != "顶层标签" {
		t.Errorf("sibling key must win over payload key, got %q", create.Label)
	}
}

func TestNormalize_KindAliases(t *testing.T) {
	n := newTestNormalizer(t)
	cases := map[string]datatypes.NodeKind{
		"text_to_image": datatypes.KindTextToImage,
		"T2I":           datatypes.KindTextToImage,
		"video":         datatypes.KindComposeVideo,
		"Composevideo":  datatypes.KindComposeVideo,
		"IMAGE":         datatypes.KindImage,
	}
	for raw, want := range cases {
		create := mustCreate(t, n, map[string]any{"type": raw})
		if create.Kind != want {
			t.Errorf("alias %q: expected %s, got %s", raw, want, create.Kind)
		}
	}
}

func TestNormalize_AllowedKindGate(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.Normalize(datatypes.ToolCreateNode, map[string]any{"type": "hologram"})
	if err == nil {
		t.Fatal("expected gate rejection for unknown kind")
	}
	if !strings.Contains(err.Error(), `"hologram"`) {
		t.Errorf("rejection should quote the requested type: %v", err)
	}
	if !strings.Contains(err.Error(), "textToImage") {
		t.Errorf("rejection should enumerate allowed types: %v", err)
	}
}

func TestNormalize_LabelDefaulting(t *testing.T) {
	n := newTestNormalizer(t)

	create := mustCreate(t, n, map[string]any{"type": "textToImage"})
	if create.Label != "文生图" {
		t.Errorf("expected default label, got %q", create.Label)
	}
	if create.LabelExplicit {
		t.Error("defaulted label must not count as explicit")
	}

	explicit := mustCreate(t, n, map[string]any{"type": "textToImage", "label": "  海报  "})
	if explicit.Label != "海报" {
		t.Errorf("expected trimmed explicit label, got %q", explicit.Label)
	}
	if !explicit.LabelExplicit {
		t.Error("explicit label must be flagged")
	}
}

func TestNormalize_VideoPromptReconciliation(t *testing.T) {
	n := newTestNormalizer(t)

	t.Run("copied into empty prompt for video kinds", func(t *testing.T) {
		create := mustCreate(t, n, map[string]any{
			"type":   "composeVideo",
			"config": map[string]any{"videoPrompt": "落日下的海岸"},
		})
		if create.Data["prompt"] != "落日下的海岸" {
			t.Errorf("videoPrompt should seed prompt, got %v", create.Data["prompt"])
		}
	})

	t.Run("never overwrites an existing prompt", func(t *testing.T) {
		create := mustCreate(t, n, map[string]any{
			"type": "composeVideo",
			"config": map[string]any{
				"prompt":      "主提示词",
				"videoPrompt": "旧提示词",
			},
		})
		if create.Data["prompt"] != "主提示词" {
			t.Errorf("primary prompt must win, got %v", create.Data["prompt"])
		}
	})

	t.Run("stripped for non-video kinds", func(t *testing.T) {
		create := mustCreate(t, n, map[string]any{
			"type":   "image",
			"config": map[string]any{"videoPrompt": "不该出现"},
		})
		if _, present := create.Data["videoPrompt"]; present {
			t.Error("videoPrompt must be stripped from non-video kinds")
		}
	})
}

func TestNormalize_PromptSeededFromLabel(t *testing.T) {
	n := newTestNormalizer(t)
	create := mustCreate(t, n, map[string]any{"type": "image", "label": "红色跑车"})
	if create.Data["prompt"] != "红色跑车" {
		t.Errorf("image prompt should seed from label, got %v", create.Data["prompt"])
	}

	// Text nodes are not image-family and get no implicit prompt.
	text := mustCreate(t, n, map[string]any{"type": "text", "label": "标题"})
	if _, present := text.Data["prompt"]; present {
		t.Error("text node must not receive a seeded prompt")
	}
}

func TestNormalize_ModelWhitelistClamp(t *testing.T) {
	n := newTestNormalizer(t)

	t.Run("off-list model clamps to default", func(t *testing.T) {
		create := mustCreate(t, n, map[string]any{
			"type":   "image",
			"config": map[string]any{"imageModel": "midjourney-v9"},
		})
		if create.Data["imageModel"] != "seedream-3.0" {
			t.Errorf("expected clamp to default, got %v", create.Data["imageModel"])
		}
	})

	t.Run("listed model passes", func(t *testing.T) {
		create := mustCreate(t, n, map[string]any{
			"type":   "image",
			"config": map[string]any{"imageModel": "flux-dev"},
		})
		if create.Data["imageModel"] != "flux-dev" {
			t.Errorf("allowed model must pass through, got %v", create.Data["imageModel"])
		}
	})

	t.Run("absent model clamps to default", func(t *testing.T) {
		create := mustCreate(t, n, map[string]any{"type": "composeVideo"})
		if create.Data["videoModel"] != "seedance-1.0" {
			t.Errorf("expected default video model, got %v", create.Data["videoModel"])
		}
	})
}

func TestNormalize_OrientationCanonicalization(t *testing.T) {
	n := newTestNormalizer(t)

	create := mustCreate(t, n, map[string]any{
		"type":   "composeVideo",
		"config": map[string]any{"orientation": "  Portrait "},
	})
	if create.Data["orientation"] != "portrait" {
		t.Errorf("expected canonical portrait, got %v", create.Data["orientation"])
	}

	missing := mustCreate(t, n, map[string]any{"type": "composeVideo"})
	if missing.Data["orientation"] != "landscape" {
		t.Errorf("absent orientation must default, got %v", missing.Data["orientation"])
	}
}

func TestNormalize_RemixIdTopLevelWins(t *testing.T) {
	n := newTestNormalizer(t)
	create := mustCreate(t, n, map[string]any{
		"type":            "composeVideo",
		"remixFromNodeId": "top-id",
		"config":          map[string]any{"remixFromNodeId": "nested-id"},
	})
	if create.RemixSourceId != "top-id" {
		t.Errorf("top-level remix id must win, got %q", create.RemixSourceId)
	}
	if _, present := create.Data["remixFromNodeId"]; present {
		t.Error("remixFromNodeId must be stripped from node data")
	}

	nested := mustCreate(t, n, map[string]any{
		"type":   "composeVideo",
		"config": map[string]any{"remixFromNodeId": "nested-id"},
	})
	if nested.RemixSourceId != "nested-id" {
		t.Errorf("nested remix id should apply when no top-level one exists, got %q", nested.RemixSourceId)
	}
}

func TestNormalize_UpdateNode(t *testing.T) {
	n := newTestNormalizer(t)

	t.Run("requires nodeId", func(t *testing.T) {
		if _, err := n.Normalize(datatypes.ToolUpdateNode, map[string]any{}); err == nil {
			t.Fatal("expected error for missing nodeId")
		}
	})

	t.Run("label and patch", func(t *testing.T) {
		action, err := n.Normalize(datatypes.ToolUpdateNode, map[string]any{
			"nodeId": "n1",
			"label":  " 新标签 ",
			"data":   map[string]any{"prompt": "更新"},
		})
		if err != nil {
			t.Fatalf("normalize updateNode: %v", err)
		}
		update := action.(datatypes.UpdateNodeAction)
		if update.Label == nil || *update.Label != "新标签" {
			t.Errorf("expected trimmed label pointer, got %v", update.Label)
		}
		if update.Patch["prompt"] != "更新" {
			t.Errorf("expected data patch, got %v", update.Patch)
		}
	})
}

func TestNormalize_BatchTargetIds(t *testing.T) {
	n := newTestNormalizer(t)

	action, err := n.Normalize(datatypes.ToolDeleteNodes, map[string]any{
		"nodeIds": []any{"a", "b"},
	})
	if err != nil {
		t.Fatalf("normalize deleteNodes: %v", err)
	}
	del := action.(datatypes.DeleteNodesAction)
	if len(del.NodeIds) != 2 || del.NodeIds[0] != "a" || del.NodeIds[1] != "b" {
		t.Errorf("unexpected ids: %v", del.NodeIds)
	}

	// Singular spelling with a bare string value.
	single, err := n.Normalize(datatypes.ToolDuplicateNodes, map[string]any{"nodeId": "solo"})
	if err != nil {
		t.Fatalf("normalize duplicateNodes: %v", err)
	}
	dup := single.(datatypes.DuplicateNodesAction)
	if len(dup.NodeIds) != 1 || dup.NodeIds[0] != "solo" {
		t.Errorf("unexpected ids: %v", dup.NodeIds)
	}
}

func TestNormalize_ConnectRequiresEndpoints(t *testing.T) {
	n := newTestNormalizer(t)
	if _, err := n.Normalize(datatypes.ToolConnectNodes, map[string]any{"sourceNodeId": "a"}); err == nil {
		t.Fatal("expected error for missing target")
	}
}

func TestNormalize_DisconnectByIdOrPair(t *testing.T) {
	n := newTestNormalizer(t)

	if _, err := n.Normalize(datatypes.ToolDisconnectNodes, map[string]any{"targetNodeId": "b"}); err == nil {
		t.Fatal("expected error when neither edgeId nor a full pair is given")
	}
	if _, err := n.Normalize(datatypes.ToolDisconnectNodes, map[string]any{"edgeId": "e1"}); err != nil {
		t.Fatalf("edgeId alone should suffice: %v", err)
	}
}

func TestNormalize_AutoLayout(t *testing.T) {
	n := newTestNormalizer(t)

	action, err := n.Normalize(datatypes.ToolAutoLayout, map[string]any{})
	if err != nil {
		t.Fatalf("normalize autoLayout: %v", err)
	}
	if action.(datatypes.AutoLayoutAction).LayoutType != datatypes.LayoutGrid {
		t.Error("omitted layoutType must default to grid")
	}

	if _, err := n.Normalize(datatypes.ToolAutoLayout, map[string]any{"layoutType": "spiral"}); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}
