package x

import (
	"strings"
	"testing"

	"github.com/blacktop/postgate/internal/postgate"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvReportsMissing(t *testing.T) {
	t.Setenv(EnvConsumerKey, "key")
	t.Setenv(EnvConsumerSecret, "")
	t.Setenv(EnvAccessToken, " ")
	t.Setenv(EnvAccessSecret, "secret")

	_, err := LoadConfigFromEnv()
	var missing postgate.MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{EnvAccessToken, EnvConsumerSecret}, missing.Variables)
	assert.True(t, postgate.IsPermanent(err))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvConsumerKey, "key")
	t.Setenv(EnvConsumerSecret, "csecret")
	t.Setenv(EnvAccessToken, "token")
	t.Setenv(EnvAccessSecret, "asecret")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{ConsumerKey: "key", ConsumerSecret: "csecret", AccessToken: "token", AccessSecret: "asecret"}, cfg)
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(postgate.Request{Message: "hello"}))
	assert.NoError(t, ValidateRequest(postgate.Request{MediaPath: "a.png"}))

	err := ValidateRequest(postgate.Request{})
	assert.True(t, postgate.IsPermanent(err))

	err = ValidateRequest(postgate.Request{Message: strings.Repeat("é", maxTextLength+1)})
	var validation postgate.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "x", validation.Provider)
}

func TestResolveMediaType(t *testing.T) {
	mt, cat, err := ResolveMediaType("shot.PNG", nil)
	require.NoError(t, err)
	assert.Equal(t, uploadtypes.MediaTypePNG, mt)
	assert.Equal(t, uploadtypes.MediaCategoryTweetImage, cat)

	mt, cat, err = ResolveMediaType("anim.gif", nil)
	require.NoError(t, err)
	assert.Equal(t, uploadtypes.MediaTypeGIF, mt)
	assert.Equal(t, uploadtypes.MediaCategoryTweetGIF, cat)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	mt, _, err = ResolveMediaType("upload", jpeg)
	require.NoError(t, err)
	assert.Equal(t, uploadtypes.MediaTypeJPEG, mt)

	for _, name := range []string{"clip.mp4", "clip.MOV"} {
		_, _, err = ResolveMediaType(name, nil)
		assert.True(t, postgate.IsPermanent(err), name)
		assert.ErrorContains(t, err, "video uploads are not supported", name)
	}
}
