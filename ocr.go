package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrOCRUnavailable indicates the OCR service is not reachable or returned an
// error.
var ErrOCRUnavailable = errors.New("OCR service unavailable")

// captchaFetchTimeout bounds the download of a remote captcha image.
const captchaFetchTimeout = 10 * time.Second

// captchaClassifier turns a captcha image into a best-effort text guess. The
// accuracy is opaque; a wrong guess just fails the login attempt.
type captchaClassifier interface {
	classify(ctx context.Context, png []byte) (string, error)
}

// ocrClient classifies captcha images through an OpenAI-compatible vision
// chat endpoint.
type ocrClient struct {
	client openai.Client
	model  string
	log    *logger
}

// newOCRClient builds the vision classifier, or returns nil when OCR is
// disabled in the configuration.
func newOCRClient(cfg appConfig, log *logger) (*ocrClient, error) {
	if !cfg.OCR.Enabled {
		return nil, nil
	}

	apiKey := strings.TrimSpace(cfg.OCR.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" {
		return nil, errors.New("missing API key (set ocr.api_key in config or OPENAI_API_KEY env)")
	}

	modelName := strings.TrimSpace(cfg.OCR.Model)
	if modelName == "" {
		modelName = defaultOCRModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.OCR.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		log.infof("OCR using custom endpoint: %s", baseURL)
	}

	return &ocrClient{client: openai.NewClient(opts...), model: modelName, log: log}, nil
}

const ocrPrompt = `This image is a text CAPTCHA. Reply with only the characters shown in the image, nothing else. If you cannot read it, reply with an empty string.`

func (o *ocrClient) classify(ctx context.Context, png []byte) (string, error) {
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(ocrPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURI}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no content in response")
	}
	return cleanGuess(resp.Choices[0].Message.Content), nil
}

// cleanGuess keeps only the characters a text captcha could contain; vision
// models like to add punctuation or prose around the answer.
func cleanGuess(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// recognition is the outcome of one captcha solve attempt. ok is false when
// no image bytes could be obtained or the classifier failed; callers must
// also treat empty text as a failed guess.
type recognition struct {
	text string
	ok   bool
}

// captchaSource carries the captcha image either as raw bytes (an on-element
// screenshot, the preferred path) or as an img src value (data URI or remote
// URL).
type captchaSource struct {
	raw []byte
	src string
}

// imageBytes resolves the source to raw image bytes. Remote URLs are fetched
// with a bounded timeout.
func (c captchaSource) imageBytes(ctx context.Context, fetch func(context.Context, string) ([]byte, error)) ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	src := strings.TrimSpace(c.src)
	switch {
	case src == "":
		return nil, errors.New("empty captcha source")
	case strings.HasPrefix(src, "data:image"):
		_, b64, ok := strings.Cut(src, ",")
		if !ok {
			return nil, errors.New("malformed data URI")
		}
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode data URI: %w", err)
		}
		return data, nil
	default:
		return fetch(ctx, src)
	}
}

// captchaSolver resolves a captcha source to a best-effort text guess. It
// never returns an error: every failure degrades to recognition{ok: false}
// and the caller retries or gives up.
type captchaSolver struct {
	classifier captchaClassifier
	fetch      func(ctx context.Context, url string) ([]byte, error)
	log        *logger
}

func newCaptchaSolver(classifier captchaClassifier, log *logger) *captchaSolver {
	return &captchaSolver{classifier: classifier, fetch: fetchImage, log: log}
}

func (s *captchaSolver) recognize(ctx context.Context, src captchaSource) recognition {
	if s.classifier == nil {
		return recognition{}
	}
	png, err := src.imageBytes(ctx, s.fetch)
	if err != nil {
		s.log.warnf("captcha image unavailable: %v", err)
		return recognition{}
	}
	text, err := s.classifier.classify(ctx, png)
	if err != nil {
		s.log.warnf("captcha recognition failed: %v", err)
		return recognition{}
	}
	return recognition{text: text, ok: true}
}

func fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, captchaFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	const maxImageSize = 5 * 1024 * 1024
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return b, nil
}
