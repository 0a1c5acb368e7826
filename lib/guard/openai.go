package guard

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	tokenizer "github.com/sandwich-go/gpt3-encoder"
	"github.com/sashabaranov/go-openai"

	"github.com/umputun/chat-guard/lib/modcheck"
)

//go:generate moq --out mocks/openai_client.go --pkg mocks --skip-ensure --with-resets . OpenAIClient

// OpenAIClient is a subset of the OpenAI API used by the gateway, satisfied by openai.Client.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	Moderations(ctx context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error)
}

// GatewayConfig contains parameters for the classification gateway.
type GatewayConfig struct {
	Model             string  // chat model for topic and vision classification
	ModerationModel   string  // moderation endpoint model
	TopicPrompt       string  // system prompt for topic classification, builtin default if empty
	MediaPrompt       string  // system prompt for media classification, builtin default if empty
	MaxTokensResponse int     // hard limit for the number of tokens in the response
	MaxTokensRequest  int     // max request length in tokens
	MaxSymbolsRequest int     // fallback max request length in symbols, if tokenizer failed
	ScoreThreshold    float64 // flag on any moderation category score above this, even if not flagged by the service
	TopicConfidence   float64 // min confidence to accept a topic verdict
	MediaConfidence   float64 // min confidence to accept a media verdict
}

// gateway wraps the external text/vision moderation capability. All failures are
// collapsed to "no verdict" and logged, the pipeline never fails closed on it.
type gateway struct {
	client OpenAIClient
	params GatewayConfig

	promptMu    sync.RWMutex
	topicPrompt string // dynamic override for the topic prompt, set by file watcher
}

// textTopics is the closed taxonomy for sensitive-topic classification.
var textTopics = []string{
	"politics", "religion", "caste", "gender_lgbtq", "racism_regionalism",
	"health_conspiracy", "reproductive_rights", "fraud_scam",
}

// mediaTopics extends the text taxonomy for image/video classification.
var mediaTopics = append(append([]string{}, textTopics...), "graphic_medical", "advertising", "fraud_imagery")

const defaultTopicPrompt = `You are a content moderator for a group chat. Classify the message against this closed list of sensitive topics: %s. ` +
	`Respond with json only: {"flagged": true/false, "topic": "<one of the list or empty>", "confidence": 0.0-1.0, "reason": "short explanation"}. ` +
	`Set flagged:true only when the message actively pushes the topic, not on a passing mention.`

const defaultMediaPrompt = `You are a content moderator for a group chat. You get one or more frames of a shared image or video. ` +
	`Classify against this closed list: %s. ` +
	`Respond with json only: {"flagged": true/false, "topic": "<one of the list or empty>", "confidence": 0.0-1.0, "description": "one sentence describing the content"}.`

type topicResponse struct {
	Flagged     bool    `json:"flagged"`
	Topic       string  `json:"topic"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	Description string  `json:"description"`
}

func newGateway(client OpenAIClient, params GatewayConfig) *gateway {
	if params.Model == "" {
		params.Model = openai.GPT4o
	}
	if params.ModerationModel == "" {
		params.ModerationModel = "omni-moderation-latest"
	}
	if params.MaxTokensResponse == 0 {
		params.MaxTokensResponse = 1024
	}
	if params.MaxTokensRequest == 0 {
		params.MaxTokensRequest = 2048
	}
	if params.MaxSymbolsRequest == 0 {
		params.MaxSymbolsRequest = 16000
	}
	if params.ScoreThreshold == 0 {
		params.ScoreThreshold = 0.75
	}
	if params.TopicConfidence == 0 {
		params.TopicConfidence = 0.7
	}
	if params.MediaConfidence == 0 {
		params.MediaConfidence = 0.6
	}
	return &gateway{client: client, params: params}
}

// classifyText checks the message against the moderation endpoint. Flags when the
// service flags any category, or when any category score exceeds the threshold
// even if the service itself didn't flag.
func (g *gateway) classifyText(ctx context.Context, text string) *modcheck.Verdict {
	if g == nil || g.client == nil {
		return nil
	}

	resp, err := g.client.Moderations(ctx, openai.ModerationRequest{Input: text, Model: g.params.ModerationModel})
	if err != nil {
		log.Printf("[WARN] moderation call failed: %v", err)
		return nil
	}
	if len(resp.Results) == 0 {
		log.Printf("[WARN] moderation call returned no results")
		return nil
	}

	res := resp.Results[0]
	scores := moderationScores(res.CategoryScores)

	var over []string
	for name, score := range scores {
		if score > g.params.ScoreThreshold {
			over = append(over, name)
		}
	}

	if !res.Flagged && len(over) == 0 {
		return nil
	}

	severity := modcheck.Medium
	if res.Flagged {
		severity = modcheck.High
	}
	reason := "flagged by moderation service"
	if !res.Flagged {
		reason = fmt.Sprintf("category scores over %.2f: %s", g.params.ScoreThreshold, strings.Join(over, ", "))
	}
	return &modcheck.Verdict{Kind: modcheck.ToxicContent, Severity: severity, Reason: reason, Scores: scores}
}

// classifyTopic checks the message against the closed sensitive-topic taxonomy.
func (g *gateway) classifyTopic(ctx context.Context, text string) *modcheck.Verdict {
	if g == nil || g.client == nil {
		return nil
	}

	g.promptMu.RLock()
	prompt := g.topicPrompt
	g.promptMu.RUnlock()
	if prompt == "" {
		prompt = g.params.TopicPrompt
	}
	if prompt == "" {
		prompt = fmt.Sprintf(defaultTopicPrompt, strings.Join(textTopics, ", "))
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
		{Role: openai.ChatMessageRoleUser, Content: g.reduceRequest(text)},
	}

	resp, err := g.send(ctx, messages)
	if err != nil {
		log.Printf("[WARN] topic classification failed: %v", err)
		return nil
	}
	if !resp.Flagged || resp.Confidence <= g.params.TopicConfidence {
		return nil
	}
	return &modcheck.Verdict{
		Kind:       modcheck.SensitiveTopic,
		Severity:   modcheck.Medium,
		Reason:     resp.Reason,
		Topic:      resp.Topic,
		Confidence: resp.Confidence,
	}
}

// classifyMedia checks extracted frames against the extended taxonomy.
// The verdict kind is set by the caller based on the media kind.
func (g *gateway) classifyMedia(ctx context.Context, frames [][]byte) *modcheck.Verdict {
	if g == nil || g.client == nil || len(frames) == 0 {
		return nil
	}

	prompt := g.params.MediaPrompt
	if prompt == "" {
		prompt = fmt.Sprintf(defaultMediaPrompt, strings.Join(mediaTopics, ", "))
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: "classify this content"}}
	for _, frame := range frames {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame),
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
		{Role: openai.ChatMessageRoleUser, MultiContent: parts},
	}

	resp, err := g.send(ctx, messages)
	if err != nil {
		log.Printf("[WARN] media classification failed: %v", err)
		return nil
	}
	if !resp.Flagged || resp.Confidence <= g.params.MediaConfidence {
		return nil
	}
	return &modcheck.Verdict{
		Kind:        modcheck.SensitiveImage, // caller adjusts for video/gif
		Severity:    modcheck.Medium,
		Reason:      "sensitive media content",
		Topic:       resp.Topic,
		Description: resp.Description,
		Confidence:  resp.Confidence,
	}
}

// setTopicPrompt replaces the topic classification prompt at runtime.
func (g *gateway) setTopicPrompt(prompt string) {
	g.promptMu.Lock()
	defer g.promptMu.Unlock()
	g.topicPrompt = strings.TrimSpace(prompt)
}

func (g *gateway) send(ctx context.Context, messages []openai.ChatCompletionMessage) (topicResponse, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.params.Model,
		MaxTokens: g.params.MaxTokensResponse,
		Messages:  messages,
	})
	if err != nil {
		return topicResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return topicResponse{}, fmt.Errorf("no choices in response")
	}

	var result topicResponse
	payload := stripWrapping(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return topicResponse{}, fmt.Errorf("can't unmarshal response %q: %w", payload, err)
	}
	return result, nil
}

// reduceRequest cuts the request to the token limit with the tokenizer,
// falling back to a symbol-count cut if the tokenizer fails.
func (g *gateway) reduceRequest(text string) string {
	defaultReducer := func(text string) string {
		if len(text) <= g.params.MaxSymbolsRequest {
			return text
		}
		return text[:g.params.MaxSymbolsRequest]
	}

	encoder, err := tokenizer.NewEncoder()
	if err != nil {
		return defaultReducer(text)
	}
	tokens, err := encoder.Encode(text)
	if err != nil {
		return defaultReducer(text)
	}
	if len(tokens) <= g.params.MaxTokensRequest {
		return text
	}
	return encoder.Decode(tokens[:g.params.MaxTokensRequest])
}

// stripWrapping removes incidental formatting noise around the structural payload,
// i.e. markdown code fences and anything outside the outermost json object.
func stripWrapping(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// moderationScores flattens the fixed-field scores struct into a map for logging and storage.
func moderationScores(s openai.ResultCategoryScores) map[string]float64 {
	return map[string]float64{
		"hate":                   float64(s.Hate),
		"hate/threatening":       float64(s.HateThreatening),
		"harassment":             float64(s.Harassment),
		"harassment/threatening": float64(s.HarassmentThreatening),
		"self-harm":              float64(s.SelfHarm),
		"self-harm/intent":       float64(s.SelfHarmIntent),
		"self-harm/instructions": float64(s.SelfHarmInstructions),
		"sexual":                 float64(s.Sexual),
		"sexual/minors":          float64(s.SexualMinors),
		"violence":               float64(s.Violence),
		"violence/graphic":       float64(s.ViolenceGraphic),
	}
}
