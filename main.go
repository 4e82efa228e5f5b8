package main

import (
	"context"
	"time"

	controlapi "github.com/polycast/relay/api/control"
	publicapi "github.com/polycast/relay/api/public"
	"github.com/polycast/relay/biz/service"
	"github.com/polycast/relay/internal/app"
	"github.com/polycast/relay/internal/cache"
	"github.com/polycast/relay/internal/configs"
	custdb "github.com/polycast/relay/internal/db"
	custhttp "github.com/polycast/relay/internal/http"
	"github.com/polycast/relay/internal/logger"
	custmqtt "github.com/polycast/relay/internal/mqtt"
	custws "github.com/polycast/relay/internal/ws"
	"github.com/polycast/relay/models/db"

	"go.uber.org/zap"
)

func main() {
	app.Run(
		time.Second*10,
		func(configs *configs.Configs, zl *zap.Logger) []app.Optioner {
			templatePath := configs.Templates.Path
			if templatePath == "" {
				templatePath = "./web/templates"
			}
			return []app.Optioner{
				app.WithHttpServer(custhttp.New(
					custhttp.WithGlobalConfigs(&configs.Public),
					custhttp.WithErrorHandler(custhttp.GlobalErrorHandler()),
					custhttp.WithRegistration(publicapi.ServiceRegistration()),
					custhttp.WithTemplatePath(templatePath),
					custhttp.WithMiddleware(custhttp.CommonPublicMiddlewares(&configs.Public)...),
				)),
				app.WithControlServer(custws.NewWebSocketServer(
					custws.WithGlobalConfigs(&configs.Control),
					custws.WithPath("/control"),
					custws.WithHandlerFactory(controlapi.StandardHandlerFactory()),
					custws.WithPoolSize(100),
				)),
				app.WithFactoryHook(func() error {
					custdb.Init(
						context.Background(),
						custdb.WithGlobalConfigs(&configs.Sqlite))
					custdb.Migrate(&db.SessionRecord{})

					cache.Init()
					service.Init()

					if configs.EventStore.Enabled {
						custmqtt.InitClient(
							context.Background(),
							custmqtt.WithClientGlobalConfigs(&configs.EventStore),
							custmqtt.WithOnConnectError(func(err error) {
								logger.Error("MQTT Connection failed", zap.Error(err))
							}),
						)
					}
					return nil
				}),
				app.WithShutdownHook(func(ctx context.Context) {
					service.Shutdown()
					custdb.Stop(ctx)
					custmqtt.StopClient(ctx)
					logger.Close()
				}),
			}
		},
	)
}
