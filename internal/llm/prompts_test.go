package llm

import (
	"strings"
	"testing"
)

func TestPromptFor(t *testing.T) {
	t.Run("multi frame uses process prompt", func(t *testing.T) {
		p := PromptFor(12, "", nil)
		if !strings.Contains(p, "成品封面") {
			t.Error("process prompt should call out the cover frame")
		}
	})

	t.Run("single frame uses inference prompt", func(t *testing.T) {
		p := PromptFor(1, "", nil)
		if !strings.Contains(p, "推測") {
			t.Error("inference prompt should ask the model to reconstruct")
		}
		if !strings.Contains(p, "食材準備") {
			t.Error("inference prompt should anchor on ingredient prep")
		}
	})

	t.Run("prior context wins regardless of frame count", func(t *testing.T) {
		prior := `{"name":"紅燒肉"}`
		p := PromptFor(12, prior, nil)
		if !strings.Contains(p, prior) {
			t.Error("reanalysis prompt should embed the prior recipe JSON")
		}
	})

	t.Run("analyzed frame indices steer the reanalysis", func(t *testing.T) {
		p := ReanalysisPrompt(`{"name":"紅燒肉"}`, []int{1, 3, 5})
		if !strings.Contains(p, "第 1、3、5 張畫面") {
			t.Errorf("reanalysis prompt missing covered-frame listing:\n%s", p)
		}
	})

	t.Run("no indices means no covered-frame line", func(t *testing.T) {
		p := ReanalysisPrompt(`{}`, nil)
		if strings.Contains(p, "已在先前分析中涵蓋") {
			t.Error("covered-frame line must only appear with indices")
		}
	})

	t.Run("all prompts request the same schema", func(t *testing.T) {
		for _, p := range []string{ProcessPrompt(), InferencePrompt(), ReanalysisPrompt("{}", nil)} {
			if !strings.Contains(p, `"ingredients"`) || !strings.Contains(p, `"completeness"`) {
				t.Error("prompt missing recipe schema")
			}
			if !strings.Contains(p, "只回傳 JSON") {
				t.Error("prompt missing JSON-only instruction")
			}
		}
	})
}

func TestLoadImages(t *testing.T) {
	t.Run("missing file errors", func(t *testing.T) {
		if _, err := LoadImages([]string{"/nonexistent/frame_0001.jpg"}); err == nil {
			t.Fatal("expected error for missing frame")
		}
	})
}

func TestImageDataURI(t *testing.T) {
	img := Image{Data: []byte{0xff, 0xd8, 0xff}, MIME: "image/jpeg"}
	uri := img.DataURI()
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Errorf("DataURI() = %q, want data:image/jpeg;base64 prefix", uri)
	}
}
