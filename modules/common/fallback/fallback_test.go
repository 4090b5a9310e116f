package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Fresh drop today.", FirstLine("\n  \nFresh drop today.\nsecond", GenericCaption))
	assert.Equal(t, GenericCaption, FirstLine(" \n\t\n", GenericCaption))
}

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"#Summer", "summer", " style ", "", "#", "new arrival"})
	assert.Equal(t, []string{"#Summer", "style", "newarrival"}, got)
}

func TestFallbackLists(t *testing.T) {
	assert.Equal(t, []string{"marketing", "product", "brandnew"}, GenericHashtagList())
	assert.Equal(t, []string{"error", "retry"}, ItemErrorHashtags())
	assert.Equal(t, []string{"error"}, TaskErrorHashtags())
}
