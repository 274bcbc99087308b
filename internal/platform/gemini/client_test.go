package gemini

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cychipo/examio-be-sub001/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewClient(t *testing.T) {
	t.Run("nil logger rejected", func(t *testing.T) {
		_, err := NewClient(nil)
		assert.Error(t, err)
	})

	t.Run("valid", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		c, err := NewClient(logger)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want provider.Kind
	}{
		{"api 429", genai.APIError{Code: 429, Message: "rate limited"}, provider.KindQuota},
		{"api 503", genai.APIError{Code: 503, Message: "unavailable"}, provider.KindTransient},
		{"api 500", genai.APIError{Code: 500, Message: "internal"}, provider.KindTransient},
		{"api 400", genai.APIError{Code: 400, Message: "bad request"}, provider.KindFatal},
		{"plain quota message", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), provider.KindQuota},
		{"plain transient message", errors.New("server temporarily overloaded"), provider.KindTransient},
		{"plain fatal", errors.New("invalid argument"), provider.KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provider.KindOf(classify(tt.err)))
		})
	}
}
