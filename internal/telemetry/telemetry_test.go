package telemetry_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quesgenie/internal/generator"
	"github.com/victornm/quesgenie/internal/telemetry"
)

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(telemetry.HTTPMetrics(), telemetry.HTTPLogger())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	ok := telemetry.HTTPRequests(http.MethodGet, "/items/:id", "418")
	unknown := telemetry.HTTPRequests(http.MethodGet, "unknown", "404")
	before, beforeUnknown := testutil.ToFloat64(ok), testutil.ToFloat64(unknown)

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(ok), "labelled by route pattern")
	assert.Equal(t, beforeUnknown+1, testutil.ToFloat64(unknown))
}

type fakeGenerator struct {
	err error
}

func (g fakeGenerator) GenerateTopics(context.Context, string) ([]string, error) {
	return []string{"a"}, g.err
}

func (g fakeGenerator) GenerateQuestions(context.Context, generator.GenerateQuestionsRequest) ([]generator.GeneratedQuestion, error) {
	return nil, g.err
}

func TestMonitorGenerator(t *testing.T) {
	success := telemetry.GeneratorCalls("topics", "success")
	failure := telemetry.GeneratorCalls("questions", "error")
	beforeSuccess, beforeFailure := testutil.ToFloat64(success), testutil.ToFloat64(failure)

	ts, err := telemetry.MonitorGenerator(fakeGenerator{}).GenerateTopics(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ts)

	boom := stderrors.New("backend down")
	_, err = telemetry.MonitorGenerator(fakeGenerator{err: boom}).GenerateQuestions(context.Background(), generator.GenerateQuestionsRequest{})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeFailure+1, testutil.ToFloat64(failure))
}

func TestMonitorRedis(t *testing.T) {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	require.NoError(t, telemetry.MonitorRedis(rc))

	ctx := context.Background()
	require.NoError(t, rc.Set(ctx, "k", "v", 0).Err())
	require.ErrorIs(t, rc.Get(ctx, "missing").Err(), redis.Nil)

	_, err := rc.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Get(ctx, "k")
		return nil
	})
	require.NoError(t, err)
}
