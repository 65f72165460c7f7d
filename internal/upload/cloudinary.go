package upload

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const cloudinaryBaseURL = "https://api.cloudinary.com"

// CloudinaryConfig holds the account credentials for signed uploads.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// BaseURL overrides the API host, for tests.
	BaseURL string
	Timeout time.Duration
}

type Cloudinary struct {
	client *resty.Client
	cfg    CloudinaryConfig
	now    func() time.Time
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewCloudinary(cfg CloudinaryConfig) *Cloudinary {
	if cfg.BaseURL == "" {
		cfg.BaseURL = cloudinaryBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Cloudinary{client: client, cfg: cfg, now: time.Now}
}

func (c *Cloudinary) Provider() string { return "cloudinary" }

func (c *Cloudinary) Upload(ctx context.Context, f File) (*Result, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	params := map[string]string{
		"timestamp": timestamp,
	}
	if c.cfg.Folder != "" {
		params["folder"] = c.cfg.Folder
	}
	form := map[string]string{
		"api_key":   c.cfg.APIKey,
		"signature": sign(params, c.cfg.APISecret),
	}
	for k, v := range params {
		form[k] = v
	}

	var (
		result cloudinaryResponse
		apiErr cloudinaryError
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", f.Name, f.Body).
		SetFormData(form).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1_1/%s/image/upload", c.cfg.CloudName))
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cloudinary upload failed: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	if result.SecureURL == "" {
		return nil, errEmptyResult
	}

	return &Result{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

// sign computes Cloudinary's request signature: the parameters sorted by
// name, joined as k=v with '&', followed by the secret, SHA-1 hex encoded.
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
