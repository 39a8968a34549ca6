// Package chatbot is a stateless proxy to the Gemini generateContent
// API. It holds no conversation state: history travels with each
// request and the reply is returned verbatim to the caller.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("chatbot: api key is not configured")

// Message is one turn of a Gemini conversation.
type Message struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// Request carries everything needed for one reply.
type Request struct {
	UserMessage string
	History     []Message
	TaskContext string
	UserName    string
}

// Client calls the generative API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimSpace(baseURL),
	}
}

type generateRequest struct {
	Contents         []Message        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateReply forwards the conversation and returns the generated
// text. No retries: a failed call surfaces immediately.
func (c *Client) GenerateReply(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	contents := c.buildContents(req)
	body, err := json.Marshal(generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 200,
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chatbot: upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chatbot: upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("chatbot: decode upstream response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("chatbot: upstream returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) buildContents(req Request) []Message {
	var contents []Message
	if len(req.History) == 0 {
		contents = append(contents, Message{Parts: []Part{{Text: systemPrompt(req.UserName, req.TaskContext)}}})
		contents = append(contents, Message{Role: "model", Parts: []Part{{Text: "I see your tasks. What do you need?"}}})
	} else {
		reminder := fmt.Sprintf("REMINDER: User %s is viewing these tasks:\n%s\n\nRULES: Under 50 words, use **bold** for task names, reference exact tasks only.",
			req.UserName, req.TaskContext)
		contents = append(contents, Message{Parts: []Part{{Text: reminder}}})
		contents = append(contents, req.History...)
	}
	contents = append(contents, Message{
		Parts: []Part{{Text: req.UserMessage + "\n\n[RESPOND USING THE TASKS LISTED ABOVE. USE MARKDOWN. UNDER 50 WORDS.]"}},
	})
	return contents
}

func systemPrompt(userName, taskContext string) string {
	return fmt.Sprintf(`You are a task management assistant. The user %s is looking at this EXACT list of tasks on their screen RIGHT NOW:

%s

MANDATORY RULES - YOU MUST FOLLOW THESE:
1. ONLY talk about tasks from the list above - use their exact names
2. Keep response under 50 words
3. Use markdown: **bold** for task names, bullets for lists
4. Format: One line + bullets + one action

DO NOT write generic advice. ONLY reference the specific tasks listed above by their exact names.`, userName, taskContext)
}
