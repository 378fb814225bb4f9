package anthropic

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/naturalize-cli/internal/resilience"
)

func newSDKError(status int, header http.Header) *sdk.Error {
	u, _ := url.Parse("https://api.anthropic.com/v1/messages")
	e := &sdk.Error{
		StatusCode: status,
		Request:    &http.Request{Method: http.MethodPost, URL: u},
		Response:   &http.Response{StatusCode: status, Header: header},
	}
	return e
}

func TestClassifyError_Nil(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))
}

func TestClassifyError_RateLimited(t *testing.T) {
	got := ClassifyError(newSDKError(http.StatusTooManyRequests, nil))
	assert.True(t, resilience.IsRateLimited(got))
	assert.True(t, resilience.IsRetryable(got))
}

func TestClassifyError_RateLimitedRetryAfterHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")

	got := ClassifyError(newSDKError(http.StatusTooManyRequests, header))
	var rl *resilience.RateLimitedError
	require.True(t, errors.As(got, &rl))
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestClassifyError_ServerErrorsTransient(t *testing.T) {
	for _, status := range []int{http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable} {
		got := ClassifyError(newSDKError(status, nil))
		assert.True(t, resilience.IsTransient(got), "status %d", status)
		assert.False(t, resilience.IsRateLimited(got), "status %d", status)
	}
}

func TestClassifyError_ClientErrorPassesThrough(t *testing.T) {
	err := newSDKError(http.StatusNotFound, nil)
	got := ClassifyError(err)
	assert.False(t, resilience.IsRetryable(got))
	assert.ErrorIs(t, got, err)
}

func TestClassifyError_NetworkHeuristics(t *testing.T) {
	got := ClassifyError(errors.New("read tcp 10.0.0.1:443: connection reset by peer"))
	assert.True(t, resilience.IsTransient(got))
}

func TestClassifyError_PlainErrorPassesThrough(t *testing.T) {
	err := errors.New("marshalling failed")
	got := ClassifyError(err)
	assert.Equal(t, err, got)
	assert.False(t, resilience.IsRetryable(got))
}

func TestRetryAfter_MissingOrInvalid(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(newSDKError(429, nil)))

	header := http.Header{}
	header.Set("Retry-After", "soon")
	assert.Equal(t, time.Duration(0), retryAfter(newSDKError(429, header)))
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}

	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)

	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "shorten these"},
		{Role: "assistant", Content: "1. Acme"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
}
