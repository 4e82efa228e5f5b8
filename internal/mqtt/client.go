package custmqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/polycast/relay/internal/configs"
	"github.com/polycast/relay/internal/logger"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

var (
	connManager *autopaho.ConnectionManager
	once        sync.Once
)

func InitClient(ctx context.Context, options ...ClientOptioner) {
	once.Do(func() {
		connManager = NewClient(ctx, options...)
	})
}

func Client() *autopaho.ConnectionManager {
	return connManager
}

func StopClient(ctx context.Context) {
	if connManager == nil {
		return
	}
	if err := connManager.Disconnect(ctx); err != nil {
		logger.SError("custmqtt.StopClient: disconnect err", zap.Error(err))
	}
}

// Publish sends one message at QoS 1. Safe to call when the client was never
// initialized, events are then dropped.
func Publish(ctx context.Context, topic string, payload []byte) error {
	if connManager == nil {
		return nil
	}
	_, err := connManager.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	if err != nil {
		logger.SError("custmqtt.Publish: err",
			zap.String("topic", topic),
			zap.Error(err))
		return err
	}
	return nil
}

func NewClient(ctx context.Context, options ...ClientOptioner) *autopaho.ConnectionManager {
	opts := &ClientOptions{}
	for _, opt := range options {
		opt(opts)
	}

	globalConfigs := opts.globalConfigs
	connUrl := url.URL{}
	if globalConfigs.Tls.IsEnabled() {
		connUrl.Scheme = "tls"
	} else {
		connUrl.Scheme = "mqtt"
	}
	hostname := globalConfigs.Host

	if globalConfigs.Port > 0 {
		hostname = fmt.Sprintf("%s:%d", globalConfigs.Host, globalConfigs.Port)
	}
	connUrl.Host = hostname

	clientConfigs := autopaho.ClientConfig{
		KeepAlive:         20,
		ConnectRetryDelay: time.Second * 5,
		ConnectTimeout:    time.Second * 2,
		BrokerUrls: []*url.URL{
			&connUrl,
		},
		ClientConfig: paho.ClientConfig{
			ClientID: globalConfigs.Name,
		},
	}

	if globalConfigs.Tls.IsEnabled() {
		clientConfigs.TlsCfg = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if globalConfigs.HasAuth() {
		clientConfigs.SetUsernamePassword(globalConfigs.Username, []byte(globalConfigs.Password))
	}

	if opts.connErrCallback != nil {
		clientConfigs.OnConnectError = opts.connErrCallback
	}

	if opts.clientErr != nil {
		clientConfigs.ClientConfig.OnClientError = opts.clientErr
	}

	manager, err := autopaho.NewConnection(ctx, clientConfigs)
	if err != nil {
		logger.SFatal("MQTT connection failed",
			zap.Error(err))
		return nil
	}

	if err := manager.AwaitConnection(ctx); err != nil {
		logger.SFatal("MQTT waiting for connection failed",
			zap.Error(err))
		return nil
	}

	return manager
}

type ClientOptions struct {
	globalConfigs   *configs.EventStoreConfigs
	connErrCallback func(err error)
	clientErr       func(err error)
}

type ClientOptioner func(options *ClientOptions)

func WithClientGlobalConfigs(configs *configs.EventStoreConfigs) ClientOptioner {
	return func(options *ClientOptions) {
		options.globalConfigs = configs
	}
}

func WithOnConnectError(cb func(err error)) ClientOptioner {
	return func(options *ClientOptions) {
		options.connErrCallback = cb
	}
}

func WithClientError(cb func(err error)) ClientOptioner {
	return func(options *ClientOptions) {
		options.clientErr = cb
	}
}
