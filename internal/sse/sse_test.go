package sse

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteUnimplementedFramesErrorAndDoneSentinel(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteUnimplemented(w, "claude-haiku-4-5-20251001", "streaming")
	require.NoError(t, err)

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, `"not_implemented"`)
	assert.Contains(t, body, "streaming: not implemented")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}
