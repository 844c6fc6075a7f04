package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "draft:abc", draftKey("abc"))
	assert.Equal(t, "course:c1:summary", summaryKey("c1"))
	assert.Equal(t, "course:c1:summary:version", summaryVersionKey("c1"))
	assert.Equal(t, "course:c1:ranking", rankingKey("c1"))
	assert.Equal(t, "course:c1:ranking:observed", observedKey("c1"))
}
