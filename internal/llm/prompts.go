package llm

import (
	"fmt"
	"strconv"
	"strings"
)

// recipeSchema is the JSON shape every prompt asks for. Kept identical
// across prompts so the parser sees one format regardless of which
// prompt produced the answer.
const recipeSchema = `{
  "name": "菜名",
  "description": "簡短描述",
  "ingredients": [
    {"name": "食材名稱", "amount": "數量", "unit": "單位"}
  ],
  "steps": [
    {
      "step_number": 1,
      "description": "步驟說明",
      "duration_minutes": 5,
      "temperature": "溫度（如適用）"
    }
  ],
  "servings": 2,
  "prep_time": 10,
  "cook_time": 20,
  "tags": ["料理類型", "烹飪方式", "難度等級"],
  "completeness": "complete"
}`

const promptRules = `要求：
1. 食譜名稱必須是繁體中文
2. 食材必須包含名稱和份量，如果畫面中沒有明確顯示，請標記為 "適量"
3. 步驟必須按順序排列，包含關鍵的時間和溫度資訊
4. 如果資訊不完整（例如缺少步驟或食材），將 completeness 設為 "incomplete"
5. 標籤請從以下分類選擇：中式、日式、韓式、泰式、西式、快炒、燉煮、炸物、烘焙、甜點、簡易、進階

只回傳 JSON，不要其他說明文字。`

// ProcessPrompt covers the normal multi-frame case: the frames walk
// through the cooking process and the first frame is the finished dish.
func ProcessPrompt() string {
	return "分析這些烹飪影片畫面，提取完整食譜資訊。第一張圖片是成品封面，其餘圖片按時間順序展示烹飪過程。請用繁體中文輸出 JSON：\n\n" +
		recipeSchema + "\n\n" + promptRules
}

// InferencePrompt covers the single-image case: reconstruct a plausible
// recipe from one photo of the finished dish. The model is told to start
// from raw ingredient preparation, never from the plated result.
func InferencePrompt() string {
	return "根據這張成品圖片，推測並重建完整的烹飪食譜。步驟必須從食材準備開始，按照實際烹飪順序推進，絕對不要從擺盤或成品開始描述。請用繁體中文輸出 JSON：\n\n" +
		recipeSchema + "\n\n" + promptRules
}

// ReanalysisPrompt embeds a previous extraction so a second pass over
// fresh frames corrects and enriches it instead of starting over.
// analyzedFrames lists 1-based indices of frames already covered by the
// prior pass; when present the model is steered toward the others.
func ReanalysisPrompt(priorJSON string, analyzedFrames []int) string {
	covered := ""
	if len(analyzedFrames) > 0 {
		covered = fmt.Sprintf("第 %s 張畫面已在先前分析中涵蓋，請優先從其他畫面擷取新資訊。\n\n", joinIndices(analyzedFrames))
	}
	return fmt.Sprintf("以下是先前分析得到的食譜：\n\n%s\n\n%s請根據這些新的影片畫面修正並補充上述食譜，保留正確的部分，補齊缺少的食材與步驟。請用繁體中文輸出 JSON：\n\n%s\n\n%s",
		priorJSON, covered, recipeSchema, promptRules)
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "、")
}

// PromptFor picks the prompt for a frame set, optionally layering prior
// context on top.
func PromptFor(frameCount int, priorJSON string, analyzedFrames []int) string {
	if priorJSON != "" {
		return ReanalysisPrompt(priorJSON, analyzedFrames)
	}
	if frameCount <= 1 {
		return InferencePrompt()
	}
	return ProcessPrompt()
}
