package availability

import "github.com/blacktop/postgate/internal/postgate"

const (
	ReasonNoAccount             = "No connected account."
	ReasonInstagramProRequired  = "Instagram requires a Professional account for publishing."
	ReasonInstagramPermissions  = "Instagram publishing permissions are missing or invalid."
	ReasonFacebookPageRequired  = "Facebook publishing requires a connected Page."
	ReasonTikTokPrerequisites   = "TikTok prerequisites or domain verification incomplete."
	ReasonTikTokPhotoDisabled   = "TikTok photo posting not enabled for this account."
	ReasonTikTokTextUnsupported = "TikTok supports photo and video posts only."
	ReasonYouTubeVideoOnly      = "YouTube supports video uploads only."
	ReasonLinkedInScope         = "Requires additional LinkedIn API access/scope."
	ReasonXMediaDisabled        = "X media upload not enabled for current API tier/config."

	ActionInstagramPro         = "Switch IG to Business account."
	ActionInstagramPermissions = "Reconnect Instagram and grant publishing permissions."
	ActionFacebookPage         = "Connect a Facebook Page."
	ActionTikTokPrerequisites  = "Complete TikTok domain verification and prerequisites."
	ActionTikTokPhoto          = "Enable TikTok photo posting in Content Posting API."
	ActionLinkedIn             = "Request LinkedIn video permission."
	ActionXMedia               = "Configure X tier for media."
	ActionConnectAccount       = "Connect account."
)

// Verdict is an unavailability reason plus its remediation, if any.
type Verdict struct {
	Reason         string
	RequiresAction bool
	ActionHint     string
}

func remediable(reason, hint string) Verdict {
	return Verdict{Reason: reason, RequiresAction: true, ActionHint: hint}
}

func categorical(reason string) Verdict {
	return Verdict{Reason: reason}
}

var noAccount = remediable(ReasonNoAccount, ActionConnectAccount)

// check fails an account when blocked returns true.
type check struct {
	blocked func(postgate.SocialAccount, postgate.ContentType) bool
	verdict Verdict
}

// ruleSet holds the ordered account checks for one platform. unsupported,
// when set, reports a content type the platform never accepts; it takes
// precedence over the no-account default when the user has no accounts.
type ruleSet struct {
	checks      []check
	unsupported func(postgate.ContentType) bool
	verdict     Verdict
}

var rules = map[postgate.Platform]ruleSet{
	postgate.PlatformInstagram: {
		checks: []check{
			{
				blocked: func(a postgate.SocialAccount, _ postgate.ContentType) bool {
					return a.AccountType != postgate.AccountInstagramProfessional
				},
				verdict: remediable(ReasonInstagramProRequired, ActionInstagramPro),
			},
			{
				blocked: func(a postgate.SocialAccount, _ postgate.ContentType) bool {
					return !a.PermissionsValid
				},
				verdict: remediable(ReasonInstagramPermissions, ActionInstagramPermissions),
			},
		},
	},
	postgate.PlatformFacebook: {
		checks: []check{
			{
				blocked: func(a postgate.SocialAccount, _ postgate.ContentType) bool {
					return a.AccountType != postgate.AccountFacebookPage
				},
				verdict: remediable(ReasonFacebookPageRequired, ActionFacebookPage),
			},
		},
	},
	postgate.PlatformTikTok: {
		checks: []check{
			{
				blocked: func(_ postgate.SocialAccount, ct postgate.ContentType) bool {
					return ct == postgate.ContentText
				},
				verdict: categorical(ReasonTikTokTextUnsupported),
			},
			{
				blocked: func(a postgate.SocialAccount, _ postgate.ContentType) bool {
					return !a.TikTokPrerequisitesMet
				},
				verdict: remediable(ReasonTikTokPrerequisites, ActionTikTokPrerequisites),
			},
			{
				blocked: func(a postgate.SocialAccount, ct postgate.ContentType) bool {
					return ct == postgate.ContentPhoto && !a.TikTokPhotoPostEnabled
				},
				verdict: remediable(ReasonTikTokPhotoDisabled, ActionTikTokPhoto),
			},
		},
		unsupported: func(ct postgate.ContentType) bool { return ct == postgate.ContentText },
		verdict:     categorical(ReasonTikTokTextUnsupported),
	},
	postgate.PlatformYouTube: {
		checks: []check{
			{
				blocked: func(_ postgate.SocialAccount, ct postgate.ContentType) bool {
					return ct != postgate.ContentVideo
				},
				verdict: categorical(ReasonYouTubeVideoOnly),
			},
		},
		unsupported: func(ct postgate.ContentType) bool { return ct != postgate.ContentVideo },
		verdict:     categorical(ReasonYouTubeVideoOnly),
	},
	postgate.PlatformLinkedIn: {
		checks: []check{
			{
				blocked: func(a postgate.SocialAccount, _ postgate.ContentType) bool {
					return !a.LinkedInAccessGranted
				},
				verdict: remediable(ReasonLinkedInScope, ActionLinkedIn),
			},
		},
	},
	postgate.PlatformX: {
		checks: []check{
			{
				// text posts never need the media endpoints
				blocked: func(a postgate.SocialAccount, ct postgate.ContentType) bool {
					return ct != postgate.ContentText && !a.XMediaUploadEnabled
				},
				verdict: remediable(ReasonXMediaDisabled, ActionXMedia),
			},
		},
	},
}

// verdictFor returns the first failing check for the account, or false when
// the account passes every check.
func (r ruleSet) verdictFor(account postgate.SocialAccount, ct postgate.ContentType) (Verdict, bool) {
	for _, c := range r.checks {
		if c.blocked(account, ct) {
			return c.verdict, true
		}
	}
	return Verdict{}, false
}

// emptyVerdict is the platform verdict when the user has no accounts on it.
func (r ruleSet) emptyVerdict(ct postgate.ContentType) Verdict {
	if r.unsupported != nil && r.unsupported(ct) {
		return r.verdict
	}
	return noAccount
}
