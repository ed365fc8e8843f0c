package server

import (
	"net/http"

	"github.com/blacktop/postgate/internal/auth"
	"github.com/blacktop/postgate/internal/availability"
	"github.com/blacktop/postgate/internal/draft"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/gin-gonic/gin"
)

const invalidContentType = "Invalid content_type."

func (s *Server) capabilities(c *gin.Context) {
	ct := postgate.ContentType(c.Query("content_type"))
	if !ct.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"detail": invalidContentType})
		return
	}
	report, err := s.evaluator.Evaluate(c.Request.Context(), auth.UserID(c), ct, nil)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// validate checks a draft and reports availability for its content type.
// Availability is still returned for invalid drafts when the content type
// itself is valid.
func (s *Server) validate(c *gin.Context) {
	var d draft.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body."})
		return
	}

	report := []availability.PlatformAvailability{}
	if ct, err := postgate.ParseContentType(d.ContentType); err == nil {
		report, err = s.evaluator.Evaluate(c.Request.Context(), auth.UserID(c), ct, d.MediaMetadata)
		if err != nil {
			fail(c, err)
			return
		}
	}

	if errs := draft.Validate(d); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"availability": report, "errors": errs})
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": report, "errors": gin.H{}})
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.store.ListAccountsByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

type accountRequest struct {
	Platform               string `json:"platform"`
	DisplayName            string `json:"display_name"`
	AccountType            string `json:"account_type"`
	PermissionsValid       bool   `json:"permissions_valid"`
	TikTokPrerequisitesMet bool   `json:"tiktok_prerequisites_met"`
	TikTokPhotoPostEnabled bool   `json:"tiktok_photo_post_enabled"`
	LinkedInAccessGranted  bool   `json:"linkedin_access_granted"`
	XMediaUploadEnabled    bool   `json:"x_media_upload_enabled"`
	XAPITier               string `json:"x_api_tier"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body."})
		return
	}
	platform, err := postgate.ParsePlatform(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"platform": err.Error()}})
		return
	}
	accountType, err := postgate.ParseAccountType(req.AccountType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"account_type": err.Error()}})
		return
	}
	if req.DisplayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"display_name": "This field is required."}})
		return
	}

	account, err := s.store.CreateAccount(c.Request.Context(), postgate.SocialAccount{
		UserID:                 auth.UserID(c),
		Platform:               platform,
		DisplayName:            req.DisplayName,
		AccountType:            accountType,
		PermissionsValid:       req.PermissionsValid,
		TikTokPrerequisitesMet: req.TikTokPrerequisitesMet,
		TikTokPhotoPostEnabled: req.TikTokPhotoPostEnabled,
		LinkedInAccessGranted:  req.LinkedInAccessGranted,
		XMediaUploadEnabled:    req.XMediaUploadEnabled,
		XAPITier:               req.XAPITier,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

type postRequest struct {
	draft.Draft
	TargetAccountIDs []int64 `json:"target_account_ids"`
}

type postResponse struct {
	postgate.Post
	Targets []postgate.PostTarget `json:"targets"`
}

func (s *Server) createPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body."})
		return
	}
	if errs := draft.Validate(req.Draft); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}
	p, err := req.Draft.Post(auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	ctx := c.Request.Context()
	created, err := s.store.CreatePost(ctx, p, req.TargetAccountIDs)
	if err != nil {
		fail(c, err)
		return
	}
	targets, err := s.store.ListTargets(ctx, created.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, postResponse{Post: created, Targets: targets})
}

func (s *Server) getPost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, err := s.store.GetPost(ctx, auth.UserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	targets, err := s.store.ListTargets(ctx, p.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, postResponse{Post: p, Targets: targets})
}

func (s *Server) publish(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	result, err := s.orchestrator.Publish(c.Request.Context(), auth.UserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
