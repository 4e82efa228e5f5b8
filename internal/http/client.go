package custhttp

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/polycast/relay/internal/logger"

	"github.com/bytedance/sonic"
	"github.com/motemen/go-loghttp"
	fastshot "github.com/opus-domini/fast-shot"
	"go.uber.org/zap"
)

type ClientOptions struct {
	timeout time.Duration
}

type ClientOptioner func(o *ClientOptions)

func WithTimeout(dur time.Duration) ClientOptioner {
	return func(o *ClientOptions) {
		o.timeout = dur
	}
}

func NewHttpClient(ctx context.Context, opts ...ClientOptioner) *http.Client {
	options := &ClientOptions{}
	for _, o := range opts {
		o(options)
	}

	return &http.Client{
		Timeout:   options.timeout,
		Transport: LoggingTransport(),
	}
}

// LoggingTransport logs every outgoing request and response status at debug level.
func LoggingTransport() http.RoundTripper {
	return &loghttp.Transport{
		LogRequest: func(req *http.Request) {
			logger.SDebug("http request",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()))
		},
		LogResponse: func(resp *http.Response) {
			logger.SDebug("http response",
				zap.Int("status", resp.StatusCode),
				zap.String("url", resp.Request.URL.String()))
		},
	}
}

func JSONResponse(resp *fastshot.Response, dest interface{}) error {
	body := resp.RawResponse.Body
	defer body.Close()

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		logger.SDebug("failed to read HTTP response body",
			zap.Error(err))
		return err
	}

	if err := sonic.Unmarshal(bodyBytes, dest); err != nil {
		logger.SDebug("failed to unmarshal JSON response",
			zap.Error(err))
		return err
	}

	return nil
}
