package auth

import (
	"context"
	"time"

	"github.com/polycast/relay/internal/configs"
	custerror "github.com/polycast/relay/internal/error"
	custhttp "github.com/polycast/relay/internal/http"
	"github.com/polycast/relay/internal/logger"

	"github.com/avast/retry-go"
	"github.com/dgraph-io/ristretto"
	fastshot "github.com/opus-domini/fast-shot"
	"go.uber.org/zap"
)

// TokenVerifier resolves a credential into a user identity. The credential
// service itself is a black box behind this interface.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type VerifierFunc func(ctx context.Context, token string) (string, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

type tokenServiceClient struct {
	configs    *configs.TokenServiceConfigs
	restClient fastshot.ClientHttpMethods
	cache      *ristretto.Cache
	cacheTtl   time.Duration
}

func NewTokenServiceClient(c *configs.TokenServiceConfigs, cache *ristretto.Cache) TokenVerifier {
	builder := fastshot.NewClient(c.BaseUrl).
		Config().SetTimeout(time.Second * 5).
		Config().SetCustomTransport(custhttp.LoggingTransport())
	if c.HasAuth() {
		builder = builder.Auth().BasicAuth(c.Username, c.Token)
	}

	ttl := time.Duration(c.CacheTtlSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Second * 30
	}

	return &tokenServiceClient{
		configs:    c,
		restClient: builder.Build(),
		cache:      cache,
		cacheTtl:   ttl,
	}
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type verifyTokenResponse struct {
	UserId string `json:"userId"`
}

func (c *tokenServiceClient) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", custerror.FormatUnauthenticated("missing token")
	}

	if c.cache != nil {
		if cached, found := c.cache.Get(token); found {
			if userId, ok := cached.(string); ok {
				return userId, nil
			}
		}
	}

	var userId string
	err := retry.Do(func() error {
		resp, err := c.restClient.POST("/v1/tokens/verify").
			Context().Set(ctx).
			Body().AsJSON(&verifyTokenRequest{Token: token}).
			Send()
		if err != nil {
			return custerror.FormatInternalError("tokenServiceClient.Verify: send err = %s", err)
		}
		if err := c.handleError(&resp); err != nil {
			return err
		}
		var parsedResp verifyTokenResponse
		if err := custhttp.JSONResponse(&resp, &parsedResp); err != nil {
			return err
		}
		userId = parsedResp.UserId
		return nil
	},
		retry.Attempts(3),
		retry.Delay(time.Millisecond*200),
		retry.RetryIf(func(err error) bool {
			custError, ok := err.(*custerror.CustomError)
			if !ok {
				return true
			}
			// auth verdicts are final, only transport-level failures retry
			return custError.Code == custerror.CodeInternal
		}))
	if err != nil {
		logger.SDebug("tokenServiceClient.Verify: failed", zap.Error(err))
		return "", err
	}

	if userId == "" {
		return "", custerror.FormatUnauthenticated("token service returned no identity")
	}

	if c.cache != nil {
		c.cache.SetWithTTL(token, userId, 1, c.cacheTtl)
	}
	return userId, nil
}

func (c *tokenServiceClient) handleError(resp *fastshot.Response) error {
	switch resp.StatusCode() {
	case 200, 201:
		return nil
	case 400:
		return custerror.FormatInvalidArgument("token service rejected the request")
	case 401, 403:
		return custerror.FormatUnauthenticated("invalid or expired token")
	default:
		return custerror.ErrorInternal
	}
}
