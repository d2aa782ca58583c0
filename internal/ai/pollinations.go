package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type PollinationsProvider struct {
	client *http.Client
}

func NewPollinationsProvider() *PollinationsProvider {
	return &PollinationsProvider{
		client: &http.Client{
			Timeout: 25 * time.Second,
		},
	}
}

func (p *PollinationsProvider) Generate(req Request) (string, error) {
	payload := map[string]interface{}{
		"model":    "openai",
		"messages": req.Messages,
		"private":  true,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", &GenerationError{Provider: "pollinations", Err: err}
	}

	httpReq, err := http.NewRequest(
		http.MethodPost,
		"https://text.pollinations.ai/openai",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", &GenerationError{Provider: "pollinations", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Provider: "pollinations", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Provider: "pollinations", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GenerationError{
			Provider: "pollinations",
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body)),
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", &GenerationError{Provider: "pollinations", Err: errors.New("returned html")}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &GenerationError{Provider: "pollinations", Err: err}
	}

	if len(parsed.Choices) == 0 {
		return "", &GenerationError{Provider: "pollinations", Err: errors.New("empty choices")}
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", &GenerationError{Provider: "pollinations", Err: errors.New("returned garbage")}
	}

	return reply, nil
}
