package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/plumedoc/internal/doc"
)

func TestParseProjectionRejectsMixedEntries(t *testing.T) {
	_, err := ParseProjection(map[string]any{"name": 1, "age": 0})
	require.Error(t, err)
	var bp *BadProjectionError
	assert.ErrorAs(t, err, &bp)
}

func TestParseProjectionRejectsNonBinaryValue(t *testing.T) {
	_, err := ParseProjection(map[string]any{"name": 2})
	require.Error(t, err)
}

func TestSkimIncludeOnlyKeepsListedPaths(t *testing.T) {
	d := doc.New()
	doc.Set(d, "name", "Bakery Cumbersome")
	doc.Set(d, "age", int64(10))
	doc.Set(d, "meta.social_media.mastodon_profile", "Bakery@Cumbersome")

	proj, err := ParseProjection(map[string]any{"meta.social_media.mastodon_profile": 1})
	require.NoError(t, err)

	out := proj.Skim(d)
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, "Bakery@Cumbersome", doc.Get(out, "meta.social_media.mastodon_profile"))
}

func TestSkimExcludePopsListedPaths(t *testing.T) {
	d := doc.New()
	doc.Set(d, "name", "Bakery Cumbersome")
	doc.Set(d, "meta.social_media.mastodon_profile", "Bakery@Cumbersome")
	doc.Set(d, "meta.social_media.mastodon_followers", int64(10))

	proj, err := ParseProjection(map[string]any{"meta.social_media.mastodon_profile": 0})
	require.NoError(t, err)

	out := proj.Skim(d)
	assert.Equal(t, "Bakery Cumbersome", doc.Get(out, "name"))
	assert.Nil(t, doc.Get(out, "meta.social_media.mastodon_profile"))
	assert.Equal(t, int64(10), doc.Get(out, "meta.social_media.mastodon_followers"))
}

func TestSkimEmptyProjectionReturnsInputUnmodified(t *testing.T) {
	d := doc.New()
	doc.Set(d, "name", "Bakery Cumbersome")
	proj, err := ParseProjection(map[string]any{})
	require.NoError(t, err)

	out := proj.Skim(d)
	assert.Same(t, d, out)
}
