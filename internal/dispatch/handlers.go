package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/replyforge/replyforge/pkg/models"
)

func (d *Dispatcher) handleAIGeneration(ctx context.Context, payload map[string]any) (map[string]any, error) {
	reviewText, ok := stringField(payload, "review_text")
	if !ok {
		return nil, missingField("review_text")
	}

	rating, _ := numberField(payload, "review_rating")
	if rating != 0 && (rating < 1 || rating > 5) {
		return nil, &ValidationError{Field: "review_rating", Reason: "must be between 1 and 5"}
	}

	rc := ReplyContext{
		ReviewRating: rating,
	}
	if profile, ok := payload["business_profile"].(map[string]any); ok {
		rc.BusinessProfile = profile
	}
	rc.CustomPrompt, _ = stringField(payload, "custom_prompt")
	if prefs, ok := payload["user_preferences"].(map[string]any); ok {
		rc.ReviewerName, _ = stringField(prefs, "reviewerName")
	}

	resp, err := d.complete(ctx, d.prompts.BuildSystemPrompt(rc), reviewText)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"generated_response": strings.TrimSpace(resp.Text),
		"tokens_used":        resp.Usage.TotalTokens,
		"model_used":         resp.Model,
	}, nil
}

func (d *Dispatcher) handleReviewProcessing(ctx context.Context, payload map[string]any) (map[string]any, error) {
	reviewText, ok := stringField(payload, "review_text")
	if !ok {
		return nil, missingField("review_text")
	}
	category, ok := stringField(payload, "business_category")
	if !ok {
		category = "general"
	}

	system := fmt.Sprintf(
		"You analyze customer reviews for a business in the %s category. "+
			"Respond with a single JSON object with keys: "+
			`"sentiment" (positive|neutral|negative), "key_topics" (array of strings), `+
			`"suggested_response" (string), "response_rating" (number 1-10). `+
			"No prose outside the JSON.", category)

	resp, err := d.complete(ctx, system, reviewText)
	if err != nil {
		return nil, err
	}

	result, err := parseJSONResult(resp.Text)
	if err != nil {
		return nil, err
	}
	result["tokens_used"] = resp.Usage.TotalTokens
	result["model_used"] = resp.Model
	return result, nil
}

func (d *Dispatcher) handlePromptAnalysis(ctx context.Context, payload map[string]any) (map[string]any, error) {
	promptText, ok := stringField(payload, "prompt_text")
	if !ok {
		return nil, missingField("prompt_text")
	}
	goals, ok := stringField(payload, "optimization_goals")
	if !ok {
		goals = "clarity"
	}

	system := fmt.Sprintf(
		"You optimize prompts for large language models, prioritizing %s. "+
			"Respond with a single JSON object with keys: "+
			`"optimized_prompt" (string), "improvements_suggested" (array of strings), `+
			`"optimization_score" (number 0-100). No prose outside the JSON.`, goals)

	resp, err := d.complete(ctx, system, promptText)
	if err != nil {
		return nil, err
	}

	result, err := parseJSONResult(resp.Text)
	if err != nil {
		return nil, err
	}
	result["original_prompt"] = promptText
	result["tokens_used"] = resp.Usage.TotalTokens
	result["model_used"] = resp.Model
	return result, nil
}

func (d *Dispatcher) handleSentimentAnalysis(ctx context.Context, payload map[string]any) (map[string]any, error) {
	textContent, ok := stringField(payload, "text_content")
	if !ok {
		return nil, missingField("text_content")
	}
	depth, ok := stringField(payload, "analysis_depth")
	if !ok {
		depth = "basic"
	}

	system := fmt.Sprintf(
		"You perform %s sentiment analysis on text. "+
			"Respond with a single JSON object with keys: "+
			`"sentiment_score" (number -1 to 1), "primary_emotion" (string), `+
			`"secondary_emotions" (array of strings), "insights" (string). `+
			"No prose outside the JSON.", depth)

	resp, err := d.complete(ctx, system, textContent)
	if err != nil {
		return nil, err
	}

	result, err := parseJSONResult(resp.Text)
	if err != nil {
		return nil, err
	}
	result["tokens_used"] = resp.Usage.TotalTokens
	result["model_used"] = resp.Model
	return result, nil
}

// complete sends a two-message (system + user) request and rejects blank
// output. A 200 with unusable content is still a job failure.
func (d *Dispatcher) complete(ctx context.Context, system, user string) (*models.CompletionResponse, error) {
	resp, err := d.client.Complete(ctx, models.CompletionRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: system},
			{Role: models.RoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, models.ErrEmptyCompletion
	}
	return resp, nil
}

// parseJSONResult decodes a model reply expected to be a single JSON object,
// tolerating markdown code fences around it.
func parseJSONResult(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var result map[string]any
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, fmt.Errorf("%w: model output is not a JSON object: %v", models.ErrInvalidCompletion, err)
	}
	return result, nil
}

// stringField returns the named payload field when it is a non-empty string.
func stringField(payload map[string]any, key string) (string, bool) {
	s, ok := payload[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// numberField returns the named payload field as a float64. JSON numbers
// decode as float64; integers stored by tests pass through via int.
func numberField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
