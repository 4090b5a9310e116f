package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashtagsRoundTrip(t *testing.T) {
	tags := []string{"#sale", "#fashion", "#newin"}
	assert.Equal(t, tags, SplitHashtags(JoinHashtags(tags)))
}

func TestSplitHashtagsDropsEmptyTokens(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitHashtags("  a   b "))
	assert.Empty(t, SplitHashtags(""))
	assert.Equal(t, "a b", JoinHashtags([]string{" a", "", "b "}))
}

func TestCaptionSourceImageCategoryName(t *testing.T) {
	img := CaptionSourceImage{ID: "imgA"}
	assert.Equal(t, "", img.CategoryName())

	img.BusinessCategories = &struct {
		Name string `json:"name"`
	}{Name: "Fashion"}
	assert.Equal(t, "Fashion", img.CategoryName())
}
