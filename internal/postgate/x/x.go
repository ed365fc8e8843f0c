// Package x publishes queued post targets to X through the v2 API.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/media/upload"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
)

const (
	EnvConsumerKey    = "POSTGATE_X_CONSUMER_KEY"
	EnvConsumerSecret = "POSTGATE_X_CONSUMER_SECRET"
	EnvAccessToken    = "POSTGATE_X_ACCESS_TOKEN"
	EnvAccessSecret   = "POSTGATE_X_ACCESS_TOKEN_SECRET"

	providerName = "x"

	metadataEndpoint = "https://upload.twitter.com/1.1/media/metadata/create.json"
	maxTextLength    = 280
)

var httpTimeout = 30 * time.Second

// Config holds OAuth 1.0a user-context credentials.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Client posts to X.
type Client struct {
	api *gotwi.Client
}

// New builds a client from POSTGATE_X_* environment variables.
func New(ctx context.Context) (postgate.Poster, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	api, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           &http.Client{Timeout: httpTimeout},
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
		APIKey:               cfg.ConsumerKey,
		APIKeySecret:         cfg.ConsumerSecret,
		Debug:                logutil.Verbose(),
	})
	if err != nil {
		return nil, fmt.Errorf("create X client: %w", err)
	}
	if !api.IsReady() {
		return nil, fmt.Errorf("x client not ready")
	}
	return &Client{api: api}, nil
}

// Name returns the platform identifier.
func (c *Client) Name() string { return providerName }

// Post creates a post with at most one image attached.
func (c *Client) Post(ctx context.Context, req postgate.Request) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}

	input := &managetweettypes.CreateInput{Text: gotwi.String(req.Message)}
	if strings.TrimSpace(req.MediaPath) != "" {
		mediaID, err := c.uploadImage(ctx, req.MediaPath, req.MediaAlt)
		if err != nil {
			return err
		}
		input.Media = &managetweettypes.CreateInputMedia{MediaIDs: []string{mediaID}}
	}

	if _, err := managetweet.Create(ctx, c.api, input); err != nil {
		return fmt.Errorf("create post: %w", unwrapGotwiError(err))
	}
	logutil.Debugf("x post created: media=%t", input.Media != nil)
	return nil
}

// ValidateRequest rejects requests X would refuse regardless of retries.
func ValidateRequest(req postgate.Request) error {
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.MediaPath) == "" {
		return postgate.ValidationError{Provider: providerName, Reason: "empty post"}
	}
	if n := len([]rune(req.Message)); n > maxTextLength {
		return postgate.ValidationError{Provider: providerName, Reason: fmt.Sprintf("text is %d characters, limit is %d", n, maxTextLength)}
	}
	return nil
}

func (c *Client) uploadImage(ctx context.Context, path, alt string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", postgate.ValidationError{Provider: providerName, Reason: fmt.Sprintf("media %q not found", path)}
		}
		return "", fmt.Errorf("read media: %w", err)
	}

	mediaType, category, err := ResolveMediaType(path, data)
	if err != nil {
		return "", err
	}

	initRes, err := upload.Initialize(ctx, c.api, &uploadtypes.InitializeInput{
		MediaType:     mediaType,
		TotalBytes:    len(data),
		MediaCategory: category,
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	if err := partialError(initRes.Errors); err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	mediaID := initRes.Data.MediaID

	appendIn := &uploadtypes.AppendInput{
		MediaID:      mediaID,
		Media:        bytes.NewReader(data),
		SegmentIndex: 0,
	}
	appendIn.GenerateBoundary()
	appendRes, err := upload.Append(ctx, c.api, appendIn)
	if err != nil {
		return "", fmt.Errorf("append upload: %w", err)
	}
	if err := partialError(appendRes.Errors); err != nil {
		return "", fmt.Errorf("append upload: %w", err)
	}

	finalizeRes, err := upload.Finalize(ctx, c.api, &uploadtypes.FinalizeInput{MediaID: mediaID})
	if err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	if err := partialError(finalizeRes.Errors); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	info := finalizeRes.Data.ProcessingInfo
	switch info.State {
	case "", resources.ProcessingInfoStateSucceeded:
	case resources.ProcessingInfoStateInProgress, resources.ProcessingInfoStatePending:
		timer := time.NewTimer(time.Duration(info.CheckAfterSecs) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	default:
		return "", fmt.Errorf("media processing failed: state=%s", info.State)
	}
	logutil.Debugf("x media uploaded: media_id=%s state=%s", mediaID, info.State)

	if alt = strings.TrimSpace(alt); alt != "" {
		params := &metadataParameters{mediaID: mediaID, altText: alt}
		ctx = context.WithValue(ctx, "Content-Type", "application/json;charset=UTF-8")
		if err := c.api.CallAPI(ctx, metadataEndpoint, http.MethodPost, params, &metadataResponse{}); err != nil {
			return "", fmt.Errorf("set alt text: %w", unwrapGotwiError(err))
		}
	}
	return mediaID, nil
}

// LoadConfigFromEnv reads credentials, reporting every missing variable.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		ConsumerKey:    strings.TrimSpace(os.Getenv(EnvConsumerKey)),
		ConsumerSecret: strings.TrimSpace(os.Getenv(EnvConsumerSecret)),
		AccessToken:    strings.TrimSpace(os.Getenv(EnvAccessToken)),
		AccessSecret:   strings.TrimSpace(os.Getenv(EnvAccessSecret)),
	}

	var missing []string
	for name, value := range map[string]string{
		EnvConsumerKey:    cfg.ConsumerKey,
		EnvConsumerSecret: cfg.ConsumerSecret,
		EnvAccessToken:    cfg.AccessToken,
		EnvAccessSecret:   cfg.AccessSecret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, postgate.MissingEnvError{Provider: providerName, Variables: missing}
	}
	return cfg, nil
}

// ResolveMediaType maps an image to X's upload type and category. Video
// uploads need the chunked async flow, which this client does not implement,
// so videos fail with a permanent ValidationError.
func ResolveMediaType(path string, data []byte) (uploadtypes.MediaType, uploadtypes.MediaCategory, error) {
	kind := strings.ToLower(filepath.Ext(path))
	if kind == "" || kind == "." {
		kind = http.DetectContentType(data)
	}
	switch {
	case videoExtensions[kind] || strings.HasPrefix(kind, "video/"):
		return "", "", postgate.ValidationError{Provider: providerName, Reason: fmt.Sprintf("video uploads are not supported by the X client (%q)", path)}
	case kind == ".jpg" || kind == ".jpeg" || strings.Contains(kind, "jpeg"):
		return uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage, nil
	case kind == ".png" || strings.Contains(kind, "png"):
		return uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage, nil
	case kind == ".gif" || strings.Contains(kind, "gif"):
		return uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF, nil
	case kind == ".webp" || strings.Contains(kind, "webp"):
		return uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage, nil
	}
	return "", "", postgate.ValidationError{Provider: providerName, Reason: fmt.Sprintf("unsupported media type for %q", path)}
}

var videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".m4v": true, ".webm": true}

func partialError(partials []resources.PartialError) error {
	if len(partials) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(partials))
	for _, pe := range partials {
		switch {
		case pe.Detail != nil && *pe.Detail != "":
			msgs = append(msgs, *pe.Detail)
		case pe.Title != nil && *pe.Title != "":
			msgs = append(msgs, *pe.Title)
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "unknown error")
	}
	return errors.New(strings.Join(msgs, "; "))
}

func unwrapGotwiError(err error) error {
	var gwErr *gotwi.GotwiError
	if !errors.As(err, &gwErr) || gwErr == nil {
		return err
	}
	parts := make([]string, 0, 4)
	if gwErr.Title != "" {
		parts = append(parts, gwErr.Title)
	}
	if gwErr.Detail != "" {
		parts = append(parts, gwErr.Detail)
	}
	for _, apiErr := range gwErr.APIErrors {
		if apiErr.Message != "" {
			parts = append(parts, apiErr.Message)
		}
	}
	if len(parts) == 0 {
		return err
	}
	return errors.New(strings.Join(parts, "; "))
}

type metadataParameters struct {
	mediaID     string
	altText     string
	accessToken string
}

func (p *metadataParameters) SetAccessToken(token string) { p.accessToken = token }

func (p *metadataParameters) AccessToken() string { return p.accessToken }

func (p *metadataParameters) ResolveEndpoint(endpointBase string) string { return endpointBase }

func (p *metadataParameters) Body() (io.Reader, error) {
	body := struct {
		MediaID string `json:"media_id"`
		AltText struct {
			Text string `json:"text"`
		} `json:"alt_text"`
	}{MediaID: p.mediaID}
	body.AltText.Text = p.altText

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(buf), nil
}

func (p *metadataParameters) ParameterMap() map[string]string { return map[string]string{} }

type metadataResponse struct{}

func (metadataResponse) HasPartialError() bool { return false }
