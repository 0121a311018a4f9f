package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultURL   = "http://localhost:3000"
	DefaultField = "picture"
	TokenField   = "auth_token"
)

// HTTPUploader posts the saved file as a multipart form with an auth token.
type HTTPUploader struct {
	URL    string
	Token  string
	Field  string
	Client *http.Client
}

func NewHTTPUploader(url, token string) *HTTPUploader {
	if url == "" {
		url = DefaultURL
	}
	return &HTTPUploader{
		URL:    url,
		Token:  token,
		Field:  DefaultField,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *HTTPUploader) Deliver(ctx context.Context, d Delivery) error {
	body, contentType, err := u.form(d.Path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", d.Path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, body)
	if err != nil {
		return fmt.Errorf("upload %s: %w", d.Path, err)
	}
	req.Header.Set("Content-Type", contentType)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", d.Path, err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("upload %s: collector returned %s", d.Path, res.Status)
	}
	return nil
}

func (u *HTTPUploader) form(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	field := u.Field
	if field == "" {
		field = DefaultField
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField(TokenField, u.Token); err != nil {
		return nil, "", err
	}
	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}
