package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Client - OpenAI 호환 chat completions 게이트웨이 클라이언트
type Client struct {
	openai       *openai.Client
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	imageModel   string
	captionModel string
	retry        RetryPolicy
}

var _ Backend = (*Client)(nil)

// NewClient - 게이트웨이 클라이언트 생성
func NewClient(baseURL, apiKey, imageModel, captionModel string, httpClient *http.Client, retry RetryPolicy) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")

	oaConfig := openai.DefaultConfig(apiKey)
	oaConfig.BaseURL = baseURL
	oaConfig.HTTPClient = httpClient

	return &Client{
		openai:       openai.NewClientWithConfig(oaConfig),
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		imageModel:   imageModel,
		captionModel: captionModel,
		retry:        retry,
	}
}

// imageChatRequest - go-openai 요청에 modalities 필드를 추가한 형태
type imageChatRequest struct {
	openai.ChatCompletionRequest
	Modalities []string `json:"modalities"`
}

// imageChatResponse - 이미지 출력이 포함된 응답 (choices[].message.images[])
type imageChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				Type     string                     `json:"type"`
				ImageURL openai.ChatMessageImageURL `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

func userMessage(prompt, imageURL string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
		},
	}
}

// GenerateImage - modalities [image, text] 로 이미지 생성 요청
func (c *Client) GenerateImage(ctx context.Context, prompt, imageURL string) (string, error) {
	return withRetry(ctx, c.retry, "image generation", func() (string, error) {
		return c.generateImageOnce(ctx, prompt, imageURL)
	})
}

func (c *Client) generateImageOnce(ctx context.Context, prompt, imageURL string) (string, error) {
	payload, err := json.Marshal(imageChatRequest{
		ChatCompletionRequest: openai.ChatCompletionRequest{
			Model:    c.imageModel,
			Messages: []openai.ChatCompletionMessage{userMessage(prompt, imageURL)},
		},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	log.Info().Str("model", c.imageModel).Msg("🎨 [Gateway] Requesting image generation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Str("body", Truncate(string(body), 500)).Msg("❌ [Gateway] Image generation failed")
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed imageChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return "", ErrNoImage
	}

	url := parsed.Choices[0].Message.Images[0].ImageURL.URL
	if url == "" {
		return "", ErrNoImage
	}
	return url, nil
}

// DescribeImage - 캡션용 텍스트 응답 요청
func (c *Client) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	return withRetry(ctx, c.retry, "caption generation", func() (string, error) {
		resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.captionModel,
			Messages: []openai.ChatCompletionMessage{userMessage(prompt, imageURL)},
		})
		if err != nil {
			return "", toStatusError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// toStatusError - go-openai 에러를 StatusError 로 정규화
func toStatusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return err
}

// Truncate - 로그용 자르기, n 바이트 이하의 rune 경계에서 자른다
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
