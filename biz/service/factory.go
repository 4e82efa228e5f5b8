package service

import (
	"sync"

	"github.com/polycast/relay/internal/auth"
	"github.com/polycast/relay/internal/cache"
	"github.com/polycast/relay/internal/configs"
	custdb "github.com/polycast/relay/internal/db"
)

var once sync.Once

var (
	sessionService *SessionService
	tokenVerifier  auth.TokenVerifier
	janitor        *Janitor
)

func Init() {
	once.Do(func() {
		globalConfigs := configs.Get()

		tokenVerifier = auth.NewTokenServiceClient(
			&globalConfigs.TokenService,
			cache.Cache())

		sessionService = NewSessionService(
			WithRegistry(NewSessionRegistry()),
			WithJournal(custdb.Layered()),
			WithRelayConfigs(&globalConfigs.Relay),
			WithEventPublishing(globalConfigs.EventStore.Enabled))

		janitor = newJanitor(sessionService.Registry())
		janitor.Start()
	})
}

func GetSessionService() *SessionService {
	return sessionService
}

func GetTokenVerifier() auth.TokenVerifier {
	return tokenVerifier
}

func Shutdown() {
	if janitor != nil {
		janitor.Stop()
	}
	if sessionService != nil {
		sessionService.Shutdown()
	}
}
