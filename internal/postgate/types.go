package postgate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformX         Platform = "x"
)

// Platforms lists every supported platform in canonical report order.
var Platforms = []Platform{
	PlatformInstagram,
	PlatformFacebook,
	PlatformTikTok,
	PlatformYouTube,
	PlatformLinkedIn,
	PlatformX,
}

// Label returns the human readable platform name.
func (p Platform) Label() string {
	switch p {
	case PlatformInstagram:
		return "Instagram"
	case PlatformFacebook:
		return "Facebook"
	case PlatformTikTok:
		return "TikTok"
	case PlatformYouTube:
		return "YouTube"
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformX:
		return "X"
	}
	return string(p)
}

// ParsePlatform normalizes a platform name.
func ParsePlatform(raw string) (Platform, error) {
	value := Platform(strings.TrimSpace(strings.ToLower(raw)))
	for _, p := range Platforms {
		if p == value {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform %q", raw)
}

// ContentType describes the post being evaluated.
type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentPhoto ContentType = "PHOTO"
	ContentVideo ContentType = "VIDEO"
)

// Valid reports whether c is exactly one of TEXT, PHOTO or VIDEO.
func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentPhoto, ContentVideo:
		return true
	}
	return false
}

// ParseContentType accepts TEXT, PHOTO or VIDEO in any case.
func ParseContentType(raw string) (ContentType, error) {
	switch ct := ContentType(strings.TrimSpace(strings.ToUpper(raw))); ct {
	case ContentText, ContentPhoto, ContentVideo:
		return ct, nil
	}
	return "", fmt.Errorf("invalid content_type %q", raw)
}

// AccountType carries platform-dependent account classification.
type AccountType string

const (
	AccountInstagramProfessional AccountType = "instagram_professional"
	AccountInstagramPersonal     AccountType = "instagram_personal"
	AccountFacebookPage          AccountType = "facebook_page"
	AccountFacebookProfile       AccountType = "facebook_profile"
)

// ParseAccountType accepts one of the known account types or an empty value.
func ParseAccountType(raw string) (AccountType, error) {
	switch at := AccountType(strings.TrimSpace(strings.ToLower(raw))); at {
	case "", AccountInstagramProfessional, AccountInstagramPersonal, AccountFacebookPage, AccountFacebookProfile:
		return at, nil
	}
	return "", fmt.Errorf("unsupported account_type %q", raw)
}

// SocialAccount is a user's connected profile on one platform. The
// platform-specific flags are only meaningful for their own platform.
type SocialAccount struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	Platform    Platform    `json:"platform"`
	DisplayName string      `json:"display_name"`
	AccountType AccountType `json:"account_type"`

	PermissionsValid       bool   `json:"permissions_valid"`
	TikTokPrerequisitesMet bool   `json:"tiktok_prerequisites_met"`
	TikTokPhotoPostEnabled bool   `json:"tiktok_photo_post_enabled"`
	LinkedInAccessGranted  bool   `json:"linkedin_access_granted"`
	XMediaUploadEnabled    bool   `json:"x_media_upload_enabled"`
	XAPITier               string `json:"x_api_tier"`

	CreatedAt time.Time `json:"created_at"`
}

func (a SocialAccount) String() string {
	return fmt.Sprintf("%s:%s", a.Platform, a.DisplayName)
}

// MediaMetadata is free-form metadata attached to a post's media.
type MediaMetadata map[string]any

// Post is a piece of content a user wants to publish.
type Post struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	ContentType   ContentType   `json:"content_type"`
	Caption       string        `json:"caption"`
	Hashtags      []string      `json:"hashtags"`
	ImageFile     string        `json:"image_file,omitempty"`
	VideoFile     string        `json:"video_file,omitempty"`
	MediaMetadata MediaMetadata `json:"media_metadata"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Message renders the caption followed by the post's hashtags.
func (p Post) Message() string {
	parts := []string{strings.TrimSpace(p.Caption)}
	for _, tag := range p.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		parts = append(parts, tag)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// MediaPath returns the attached image or video file, if any.
func (p Post) MediaPath() string {
	switch p.ContentType {
	case ContentPhoto:
		return p.ImageFile
	case ContentVideo:
		return p.VideoFile
	}
	return ""
}

// TargetStatus tracks a post target through routing and publishing.
type TargetStatus string

const (
	StatusSelected  TargetStatus = "selected"
	StatusQueued    TargetStatus = "queued"
	StatusRejected  TargetStatus = "rejected"
	StatusPublished TargetStatus = "published"
	StatusFailed    TargetStatus = "failed"
)

// PostTarget pairs a post with one of the owner's accounts.
type PostTarget struct {
	ID              int64        `json:"id"`
	PostID          int64        `json:"post_id"`
	SocialAccountID int64        `json:"social_account_id"`
	Status          TargetStatus `json:"status"`
	LastError       string       `json:"last_error"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Request defines the payload handed to a platform poster.
type Request struct {
	Message   string
	MediaPath string
	MediaAlt  string
}

// Poster abstracts a platform client that can publish content.
type Poster interface {
	Name() string
	Post(ctx context.Context, req Request) error
}
