package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blastbot/internal/config"
	logx "blastbot/pkg/logx"
)

// Gateway is an HTTP adapter for a whatsapp-web.js style gateway service.
//
// Endpoints:
//
//	GET  /api/status      -> {"connected": bool}
//	POST /api/send/text   -> {"chatId": "...", "text": "..."}
//	POST /api/send/media  -> {"chatId": "...", "caption": "...", "filename": "...",
//	                          "mimetype": "...", "data": "<base64>"}
type Gateway struct {
	baseURL string
	token   string
	http    *http.Client
	log     logx.Logger
}

func NewGateway(cfg config.ChannelConfig, log logx.Logger) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/")
	if base == "" {
		return nil, errors.New("channel: gateway_url is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout, err := config.DurationOrDefault("channel.request_timeout", cfg.RequestTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// chatID converts a normalized number into the gateway's address form.
// Already-qualified ids (containing "@") pass through.
func chatID(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return strings.TrimPrefix(to, "+") + "@c.us"
}

func (g *Gateway) Ready(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/status", http.NoBody)
	if err != nil {
		return false, err
	}
	g.auth(req)
	resp, err := g.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("channel: status endpoint returned %s", resp.Status)
	}
	var body struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Connected, nil
}

func (g *Gateway) SendText(ctx context.Context, to, text string) error {
	return g.post(ctx, "/api/send/text", map[string]any{
		"chatId": chatID(to),
		"text":   text,
	})
}

func (g *Gateway) SendMedia(ctx context.Context, to, path, mimeType, caption string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("channel: read media: %w", err)
	}
	return g.post(ctx, "/api/send/media", map[string]any{
		"chatId":   chatID(to),
		"caption":  caption,
		"filename": filepath.Base(path),
		"mimetype": mimeType,
		"data":     base64.StdEncoding.EncodeToString(raw),
	})
}

func (g *Gateway) post(ctx context.Context, path string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	g.auth(req)

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("channel: %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (g *Gateway) auth(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}
