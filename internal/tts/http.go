package tts

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

const maxAudioBytes = 32 << 20

// HTTPSynthesizer talks to a Chatterbox-style synthesis service:
// POST /synthesize with a JSON Request returns audio/wav, GET /voices
// returns {"voices": [...]}.
type HTTPSynthesizer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSynthesizer(baseURL string, timeout time.Duration) *HTTPSynthesizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSynthesizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSynthesizer) Name() string { return "http" }

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()
	audio, err := s.synthesize(ctx, req)
	observe(s.Name(), start, err)
	return audio, err
}

func (s *HTTPSynthesizer) synthesize(ctx context.Context, req Request) (*Audio, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	format, err := parseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("synthesis response: %w", err)
	}
	return &Audio{WAV: data, Format: format}, nil
}

func (s *HTTPSynthesizer) Voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voices request returned %d", resp.StatusCode)
	}
	var out struct {
		Voices []string `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding voices: %w", err)
	}
	return out.Voices, nil
}
