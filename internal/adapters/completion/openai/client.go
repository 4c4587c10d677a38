package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/ports"
)

const (
	DefaultEndpoint         = "https://api.openai.com/v1/responses"
	DefaultModel            = "o4-mini"
	DefaultReasoningEffort  = "medium"
	DefaultReasoningSummary = "auto"

	maxResponseBytes = 8 << 20
)

type Config struct {
	Endpoint         string
	Model            string
	ReasoningEffort  string
	ReasoningSummary string
	UserAgent        string
	// HTTPClient defaults to http.DefaultClient. No request timeout is
	// applied on top of the transport's own.
	HTTPClient *http.Client
}

// Client calls the Responses endpoint once per Send. It keeps no state
// between calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ ports.CompletionClient = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = DefaultReasoningEffort
	}
	if cfg.ReasoningSummary == "" {
		cfg.ReasoningSummary = DefaultReasoningSummary
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) Model() string {
	return c.cfg.Model
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reasoning struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary"`
}

type requestBody struct {
	Model        string         `json:"model"`
	Instructions string         `json:"instructions"`
	Input        []inputMessage `json:"input"`
	Reasoning    reasoning      `json:"reasoning"`
}

func (c *Client) newRequestBody(req ports.CompletionRequest) requestBody {
	return requestBody{
		Model:        c.cfg.Model,
		Instructions: req.Instructions,
		Input:        []inputMessage{{Role: string(domain.RoleUser), Content: req.UserText}},
		Reasoning: reasoning{
			Effort:  c.cfg.ReasoningEffort,
			Summary: c.cfg.ReasoningSummary,
		},
	}
}

// Send posts a single user message and returns the extracted answer. Remote
// failures come back as *domain.RemoteError, transport failures as
// *domain.NetworkError. A successful response with no recognizable text
// yields NoContentPlaceholder.
func (c *Client) Send(ctx context.Context, req ports.CompletionRequest) (string, error) {
	payload, err := json.Marshal(c.newRequestBody(req))
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+req.Credential)
	request.Header.Set("Content-Type", "application/json")
	if c.cfg.UserAgent != "" {
		request.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", &domain.NetworkError{Message: fmt.Sprintf("perform request: %v", err), Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return "", &domain.NetworkError{Message: fmt.Sprintf("read response: %v", err), Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", &domain.RemoteError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return ExtractText(body)
}
