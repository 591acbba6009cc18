package gewe

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

// maxDownloadBytes caps media downloads (64 MiB covers GeWe video limits).
const maxDownloadBytes = 64 << 20

// HTTPClient talks to a GeWe API endpoint over HTTP.
type HTTPClient struct {
	baseURL string
	tokens  TokenFunc
	client  *http.Client
}

// NewHTTPClient creates a client for the given API base URL
// (e.g. "http://127.0.0.1:2531/v2/api"). tokens resolves per-bot API tokens.
func NewHTTPClient(baseURL string, tokens TokenFunc) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) SendText(ctx context.Context, appID, toWxid, content string, ats []string) error {
	body := map[string]interface{}{
		"appId":   appID,
		"toWxid":  toWxid,
		"content": content,
	}
	if len(ats) > 0 {
		body["ats"] = strings.Join(ats, ",")
	}
	_, err := c.post(ctx, appID, "/message/postText", body)
	return err
}

func (c *HTTPClient) SendImage(ctx context.Context, appID, toWxid, imgURL string) error {
	_, err := c.post(ctx, appID, "/message/postImage", map[string]interface{}{
		"appId":  appID,
		"toWxid": toWxid,
		"imgUrl": imgURL,
	})
	return err
}

func (c *HTTPClient) SendAppMsg(ctx context.Context, appID, toWxid, appmsgXML string) error {
	_, err := c.post(ctx, appID, "/message/postAppMsg", map[string]interface{}{
		"appId":  appID,
		"toWxid": toWxid,
		"appmsg": appmsgXML,
	})
	return err
}

func (c *HTTPClient) DownloadImage(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return c.download(ctx, appID, "/message/downloadImage", map[string]interface{}{
		"appId": appID,
		"xml":   contentXML,
		"type":  2, // normal quality
	})
}

func (c *HTTPClient) DownloadVoice(ctx context.Context, appID, contentXML string, msgID int64) ([]byte, error) {
	return c.download(ctx, appID, "/message/downloadVoice", map[string]interface{}{
		"appId": appID,
		"xml":   contentXML,
		"msgId": msgID,
	})
}

func (c *HTTPClient) DownloadVideo(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return c.download(ctx, appID, "/message/downloadVideo", map[string]interface{}{
		"appId": appID,
		"xml":   contentXML,
	})
}

func (c *HTTPClient) DownloadEmoji(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return c.download(ctx, appID, "/message/downloadEmojiMd5", map[string]interface{}{
		"appId": appID,
		"xml":   contentXML,
	})
}

func (c *HTTPClient) DownloadFile(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return c.download(ctx, appID, "/message/downloadFile", map[string]interface{}{
		"appId": appID,
		"xml":   contentXML,
	})
}

// apiResponse is the GeWe envelope: ret 200 means success.
type apiResponse struct {
	Ret  int             `json:"ret"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *HTTPClient) post(ctx context.Context, appID, path string, body interface{}) (*apiResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gewe: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gewe: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens(appID); token != "" {
		req.Header.Set("X-GEWE-TOKEN", token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gewe: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("gewe: %s: HTTP %d: %s", path, resp.StatusCode, string(raw))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("gewe: %s: decode response: %w", path, err)
	}
	if apiResp.Ret != 200 {
		return nil, fmt.Errorf("gewe: %s: ret %d: %s", path, apiResp.Ret, apiResp.Msg)
	}
	return &apiResp, nil
}

// download calls a media-download endpoint, then fetches the returned fileUrl.
func (c *HTTPClient) download(ctx context.Context, appID, path string, body interface{}) ([]byte, error) {
	apiResp, err := c.post(ctx, appID, path, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		FileURL string `json:"fileUrl"`
	}
	if err := json.Unmarshal(apiResp.Data, &payload); err != nil {
		return nil, fmt.Errorf("gewe: %s: decode data: %w", path, err)
	}
	if payload.FileURL == "" {
		return nil, fmt.Errorf("gewe: %s: no fileUrl in response", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.FileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gewe: fetch media: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gewe: fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gewe: fetch media: HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("gewe: fetch media: %w", err)
	}
	return raw, nil
}
