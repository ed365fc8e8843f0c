// Package draft validates post payloads before they are stored or evaluated.
package draft

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blacktop/postgate/internal/postgate"
)

// Draft is an unsaved post as submitted by a client.
type Draft struct {
	ContentType   string                 `json:"content_type"`
	Caption       string                 `json:"caption"`
	Hashtags      []string               `json:"hashtags"`
	ImageFile     string                 `json:"image_file"`
	VideoFile     string                 `json:"video_file"`
	MediaMetadata postgate.MediaMetadata `json:"media_metadata"`
}

// Errors maps a payload field to its validation message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, e[field]))
	}
	return "invalid post: " + strings.Join(msgs, "; ")
}

// Validate checks the caption and media presence rules for the draft's
// content type. It returns nil when the draft is valid.
func Validate(d Draft) Errors {
	errs := Errors{}

	ct, err := postgate.ParseContentType(d.ContentType)
	if err != nil {
		errs["content_type"] = "Invalid content_type."
		return errs
	}

	hasCaption := strings.TrimSpace(d.Caption) != ""
	hasImage := strings.TrimSpace(d.ImageFile) != ""
	hasVideo := strings.TrimSpace(d.VideoFile) != ""

	switch ct {
	case postgate.ContentText:
		if hasImage || hasVideo {
			errs["media"] = "TEXT posts cannot include image or video files."
		}
	case postgate.ContentPhoto:
		if !hasImage {
			errs["image_file"] = "Image file is required for PHOTO posts."
		}
		if hasVideo {
			errs["video_file"] = "PHOTO posts cannot include video files."
		}
	case postgate.ContentVideo:
		if !hasVideo {
			errs["video_file"] = "Video file is required for VIDEO posts."
		}
		if hasImage {
			errs["image_file"] = "VIDEO posts cannot include image files."
		}
	}
	if !hasCaption {
		errs["caption"] = fmt.Sprintf("Caption is required for %s posts.", ct)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Post converts a validated draft into a post owned by userID.
func (d Draft) Post(userID int64) (postgate.Post, error) {
	if errs := Validate(d); errs != nil {
		return postgate.Post{}, errs
	}
	ct, _ := postgate.ParseContentType(d.ContentType)
	meta := d.MediaMetadata
	if meta == nil {
		meta = postgate.MediaMetadata{}
	}
	hashtags := d.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return postgate.Post{
		UserID:        userID,
		ContentType:   ct,
		Caption:       strings.TrimSpace(d.Caption),
		Hashtags:      hashtags,
		ImageFile:     strings.TrimSpace(d.ImageFile),
		VideoFile:     strings.TrimSpace(d.VideoFile),
		MediaMetadata: meta,
	}, nil
}
