// Package ai talks to the generative-AI collaborator used for food-photo
// analysis and coach replies.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

const (
	defaultAPIVersion = "v1beta"
	requestTimeout    = 60 * time.Second

	fallbackFood = "Блюдо"
	fallbackTip  = "Контролируйте размер порции и добавляйте свежие овощи для поддержания баланса."
)

type Client struct {
	baseURL    string
	apiKey     string
	modelID    string
	httpClient *http.Client
}

func New(baseURL, apiKey, modelID string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generation_config,omitempty"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// AnalyzeFood sends a photo plus profile context and returns the structured
// nutrition estimate.
func (c *Client) AnalyzeFood(ctx context.Context, imageBase64 string, profile model.Profile) (model.AnalysisResult, error) {
	prompt := fmt.Sprintf(`Ты — Fit AI диетолог. Проанализируй фото блюда и СТРОГО верни JSON со следующими полями:
- food (строка, название блюда на русском),
- portion_grams, calories, protein, fat, carbs (числа без единиц, десятичный разделитель — точка),
- tip (строка с кратким советом, учитывающим возраст %d лет и вес %g кг пользователя).
Не добавляй комментариев вне JSON.`, profile.Age, profile.WeightKg)

	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: imageBase64}},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generationConfig{Temperature: 0},
	}

	text, err := c.generate(ctx, req)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	raw, ok := extractJSON(text)
	if !ok {
		return model.AnalysisResult{}, fmt.Errorf("ai: response contains no parsable JSON")
	}
	return sanitizeResult(raw), nil
}

// CoachReply sends the ordered chat history with profile and diary context.
// Paid tiers get a deeper system instruction.
func (c *Client) CoachReply(ctx context.Context, history []model.ChatMessage, profile model.Profile, entries []model.DiaryEntry, tier model.Tier) (string, error) {
	diarySummary := "Пользователь пока ничего не ел сегодня."
	if len(entries) > 0 {
		var parts []string
		for _, e := range entries {
			parts = append(parts, fmt.Sprintf("%s (%g ккал)", e.Food, e.Calories))
		}
		diarySummary = "Вот что пользователь съел сегодня: " + strings.Join(parts, ", ") + "."
	}

	instruction := fmt.Sprintf(`Ты — "Fit AI Коуч", дружелюбный ИИ-диетолог. Твоя цель — помогать пользователю придерживаться здоровых привычек и двигаться к цели.
Учитывай данные профиля (возраст: %d, вес: %g кг, цель: %g кг).
%s
Пиши на русском языке и структурируй ответ короткими абзацами или списками.`, profile.Age, profile.WeightKg, profile.GoalWeightKg, diarySummary)
	if tier.Paid() {
		instruction += "\nПользователь имеет подписку Pro/Premium. Добавляй больше глубины: точки роста, нюансы по нутриентам, идеи для привычек и тренировок."
	}

	contents := make([]content, 0, len(history))
	for _, msg := range history {
		contents = append(contents, content{
			Role:  string(msg.Role),
			Parts: []part{{Text: msg.Text}},
		})
	}

	req := generateRequest{
		Contents:          contents,
		SystemInstruction: &content{Parts: []part{{Text: instruction}}},
		GenerationConfig:  &generationConfig{Temperature: 0.7},
	}
	return c.generate(ctx, req)
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("ai: api key is not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, defaultAPIVersion, c.modelID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	for _, candidate := range out.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", fmt.Errorf("ai: response contains no text")
}

var fencedJSON = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// extractJSON pulls a JSON object out of model text: fenced block first, then
// the outermost brace pair, then the raw text.
func extractJSON(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	var variants []string
	if m := fencedJSON.FindStringSubmatch(trimmed); len(m) == 2 {
		variants = append(variants, m[1])
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start != -1 && end > start {
		variants = append(variants, trimmed[start:end+1])
	}
	variants = append(variants, trimmed)

	for _, candidate := range variants {
		var raw map[string]any
		if err := json.Unmarshal([]byte(candidate), &raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func sanitizeString(value any, fallback string) string {
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return fallback
}

func sanitizeNumber(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	case string:
		normalized := strings.ReplaceAll(v, ",", ".")
		if m := numberPattern.FindString(normalized); m != "" {
			var parsed float64
			if _, err := fmt.Sscanf(m, "%f", &parsed); err == nil {
				return parsed
			}
		}
	}
	return fallback
}

// sanitizeResult fills in defensible fallbacks for missing or malformed
// fields: portion defaults to 120 g, calories estimate to 2 kcal per gram.
func sanitizeResult(raw map[string]any) model.AnalysisResult {
	portion := sanitizeNumber(raw["portion_grams"], 0)
	if portion < 0 {
		portion = 0
	}
	caloriesFallback := 0.0
	if portion > 0 {
		caloriesFallback = math.Round(portion * 2)
	}
	if portion == 0 {
		portion = 120
	}

	return model.AnalysisResult{
		Food:         sanitizeString(raw["food"], fallbackFood),
		PortionGrams: portion,
		Calories:     sanitizeNumber(raw["calories"], caloriesFallback),
		Protein:      sanitizeNumber(raw["protein"], 0),
		Fat:          sanitizeNumber(raw["fat"], 0),
		Carbs:        sanitizeNumber(raw["carbs"], 0),
		Tip:          sanitizeString(raw["tip"], fallbackTip),
	}
}
