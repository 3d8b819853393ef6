package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLineAPIBaseURL   = "https://api.line.me"
	defaultReplyHTTPTimeout = 10 * time.Second
	lineReplyPath           = "/v2/bot/message/reply"
	maxReplyResponseBody    = 4 << 10
)

// ReplySenderConfig configures the LINE reply API client.
type ReplySenderConfig struct {
	APIBaseURL  string
	AccessToken string
	Timeout     time.Duration
}

// ReplySender calls the LINE reply endpoint.
type ReplySender struct {
	client      *http.Client
	endpoint    string
	accessToken string
}

type lineTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type lineReplyRequest struct {
	ReplyToken string            `json:"replyToken"`
	Messages   []lineTextMessage `json:"messages"`
}

// NewReplySender creates a reply sender. A nil client gets one with the
// configured timeout, defaulting to 10 seconds.
func NewReplySender(cfg ReplySenderConfig, client *http.Client) *ReplySender {
	httpClient := client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultReplyHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	apiBaseURL := strings.TrimSpace(cfg.APIBaseURL)
	if apiBaseURL == "" {
		apiBaseURL = defaultLineAPIBaseURL
	}

	return &ReplySender{
		client:      httpClient,
		endpoint:    strings.TrimRight(apiBaseURL, "/") + lineReplyPath,
		accessToken: strings.TrimSpace(cfg.AccessToken),
	}
}

// Reply sends text as a single text message addressed by replyToken.
// Non-2xx responses are returned as *SendError.
func (s *ReplySender) Reply(ctx context.Context, replyToken, text string) error {
	if strings.TrimSpace(replyToken) == "" {
		return fmt.Errorf("reply token is required")
	}

	body, err := json.Marshal(lineReplyRequest{
		ReplyToken: replyToken,
		Messages:   []lineTextMessage{{Type: MessageTypeText, Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshaling line reply body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building line reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending line reply request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyResponseBody))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &SendError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	return nil
}

type replyEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

type replyPoster interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// EncryptedReplySink answers each actionable event with its own text,
// encrypted, through the LINE reply API.
type EncryptedReplySink struct {
	cipher  replyEncrypter
	sender  replyPoster
	metrics *Metrics
	now     func() time.Time
}

// NewEncryptedReplySink wires a cipher and a sender into an EventSink.
func NewEncryptedReplySink(cipher replyEncrypter, sender replyPoster, metrics *Metrics) *EncryptedReplySink {
	return &EncryptedReplySink{
		cipher:  cipher,
		sender:  sender,
		metrics: metrics,
		now:     time.Now,
	}
}

// Handle encrypts text and sends it once.
func (s *EncryptedReplySink) Handle(ctx context.Context, replyToken, text string) error {
	encrypted, err := s.cipher.Encrypt(text)
	if err != nil {
		s.metrics.observeReply("encrypt_error", 0)
		return fmt.Errorf("encrypting reply: %w", err)
	}

	start := s.now()
	err = s.sender.Reply(ctx, replyToken, encrypted)
	elapsed := s.now().Sub(start)
	if err != nil {
		if _, ok := AsSendError(err); ok {
			s.metrics.observeReply("rejected", elapsed)
		} else {
			s.metrics.observeReply("transport_error", elapsed)
		}
		return err
	}
	s.metrics.observeReply("sent", elapsed)
	return nil
}
