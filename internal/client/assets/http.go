package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPUploader posts file bytes to {BaseURL}/objects/upload.
type HTTPUploader struct {
	BaseURL string
	Client  *http.Client
	// Authorize decorates each request, typically with the session cookie.
	Authorize func(*http.Request) error
}

func NewHTTPUploader(baseURL string, client *http.Client, authorize func(*http.Request) error) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{BaseURL: strings.TrimRight(baseURL, "/"), Client: client, Authorize: authorize}
}

type uploadResponse struct {
	URL      string `json:"url"`
	ObjectId string `json:"objectId"`
}

func (u *HTTPUploader) Put(ctx context.Context, obj Object) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/objects/upload", obj.Body)
	if err != nil {
		return "", err
	}
	req.ContentLength = obj.Size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Object-Key", obj.Key)
	req.Header.Set("X-Object-Content-Type", obj.ContentType)
	req.Header.Set("Idempotency-Key", obj.Digest)

	if u.Authorize != nil {
		if err := u.Authorize(req); err != nil {
			return "", err
		}
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload rejected: %s; body: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	switch {
	case ur.URL != "":
		return ur.URL, nil
	case ur.ObjectId != "":
		return ur.ObjectId, nil
	}
	return "", fmt.Errorf("upload response has neither url nor objectId")
}
