package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/truthgauge/internal/model"
)

// OCRSpaceClient recognizes image text through an OCR.space compatible API
type OCRSpaceClient struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

// OCR.space API structures
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"` // string or list of strings
}

// NewOCRSpaceClient creates an OCR client from configuration
func NewOCRSpaceClient(cfg model.OCRConfig, timeout time.Duration) (*OCRSpaceClient, error) {
	if cfg.APIKey == "" {
		return nil, model.NewError(model.KindMisconfigured, "OCR API key is required", nil)
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	return &OCRSpaceClient{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Recognize uploads the image and returns the text of the first parsed result
func (c *OCRSpaceClient) Recognize(ctx context.Context, data []byte, mediaType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("language", c.language)
	_ = mw.WriteField("isOverlayRequired", "false")

	part, err := mw.CreateFormFile("file", uploadName(mediaType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("OCR processing failed: %s", ocrErrorMessage(parsed.ErrorMessage))
	}
	if len(parsed.ParsedResults) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.ParsedResults[0].ParsedText), nil
}

func uploadName(mediaType string) string {
	if mediaType == MediaPNG {
		return "upload.png"
	}
	return "upload.jpg"
}

func ocrErrorMessage(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return "unknown error"
}
