package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures a JSON mail relay endpoint.
type HTTPConfig struct {
	BaseURL  string
	Path     string
	APIKey   string
	From     string
	Timeout  time.Duration
	Headers  map[string]string
	Subjects map[Purpose]string
}

type codeMessage struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

// HTTPSender posts each code as JSON to a relay service.
type HTTPSender struct {
	resty  *resty.Client
	config HTTPConfig
}

// NewHTTPSender builds a resty client for cfg.
func NewHTTPSender(cfg HTTPConfig) (*HTTPSender, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("mail relay base url is required")
	}
	if cfg.Path == "" {
		cfg.Path = "/v1/messages"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if len(cfg.Headers) > 0 {
		rc.SetHeaders(cfg.Headers)
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		rc.SetAuthToken(key)
	}
	return &HTTPSender{resty: rc, config: cfg}, nil
}

func (s *HTTPSender) SendCode(ctx context.Context, email string, purpose Purpose, code string) error {
	msg := codeMessage{
		From:    s.config.From,
		To:      email,
		Subject: s.subject(purpose),
		Purpose: string(purpose),
		Code:    code,
	}

	resp, err := s.resty.R().
		SetContext(ctx).
		SetBody(msg).
		Post(s.config.Path)
	if err != nil {
		return fmt.Errorf("mail relay: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail relay: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (s *HTTPSender) subject(purpose Purpose) string {
	if subj, ok := s.config.Subjects[purpose]; ok {
		return subj
	}
	switch purpose {
	case PurposePasswordReset:
		return "Your password reset code"
	default:
		return "Verify your email address"
	}
}
