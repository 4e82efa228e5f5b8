package service

import (
	"context"
	"fmt"
	"time"

	"github.com/polycast/relay/internal/configs"
	custdb "github.com/polycast/relay/internal/db"
	custerror "github.com/polycast/relay/internal/error"
	"github.com/polycast/relay/internal/logger"
	custmqtt "github.com/polycast/relay/internal/mqtt"
	"github.com/polycast/relay/models/db"
	"github.com/polycast/relay/models/events"
	"github.com/polycast/relay/models/rest"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"
	"github.com/carlmjohnson/flowmatic"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionEventTopicPrefix = "relay/sessions/"

type SessionService struct {
	registry SessionRegistry
	compiler CommandCompiler
	journal  *custdb.LayeredDb

	queueSize     int
	liveAfter     time.Duration
	stopGrace     time.Duration
	publishEvents bool
}

type SessionServiceOptions struct {
	registry      SessionRegistry
	compiler      CommandCompiler
	journal       *custdb.LayeredDb
	relayConfigs  *configs.RelayConfigs
	publishEvents bool
}

type SessionServiceOptioner func(o *SessionServiceOptions)

func WithRegistry(registry SessionRegistry) SessionServiceOptioner {
	return func(o *SessionServiceOptions) {
		o.registry = registry
	}
}

func WithCommandCompiler(compiler CommandCompiler) SessionServiceOptioner {
	return func(o *SessionServiceOptions) {
		o.compiler = compiler
	}
}

func WithJournal(journal *custdb.LayeredDb) SessionServiceOptioner {
	return func(o *SessionServiceOptions) {
		o.journal = journal
	}
}

func WithRelayConfigs(c *configs.RelayConfigs) SessionServiceOptioner {
	return func(o *SessionServiceOptions) {
		o.relayConfigs = c
	}
}

func WithEventPublishing(enabled bool) SessionServiceOptioner {
	return func(o *SessionServiceOptions) {
		o.publishEvents = enabled
	}
}

func NewSessionService(options ...SessionServiceOptioner) *SessionService {
	opts := &SessionServiceOptions{}
	for _, option := range options {
		option(opts)
	}

	if opts.registry == nil {
		opts.registry = NewSessionRegistry()
	}
	if opts.compiler == nil {
		opts.compiler = DefaultCommandCompiler(&configs.Get().Ffmpeg)
	}

	s := &SessionService{
		registry:      opts.registry,
		compiler:      opts.compiler,
		journal:       opts.journal,
		queueSize:     256,
		liveAfter:     time.Second * 3,
		stopGrace:     time.Second * 3,
		publishEvents: opts.publishEvents,
	}
	if opts.relayConfigs != nil {
		if opts.relayConfigs.ChunkQueueSize > 0 {
			s.queueSize = opts.relayConfigs.ChunkQueueSize
		}
		if opts.relayConfigs.LiveAfterMs > 0 {
			s.liveAfter = time.Duration(opts.relayConfigs.LiveAfterMs) * time.Millisecond
		}
		if opts.relayConfigs.StopGraceMs > 0 {
			s.stopGrace = time.Duration(opts.relayConfigs.StopGraceMs) * time.Millisecond
		}
	}
	return s
}

func (s *SessionService) Registry() SessionRegistry {
	return s.registry
}

// StartSession registers one session for the user and spawns one encoder
// pipeline per destination. A conflicting or invalid request creates nothing.
func (s *SessionService) StartSession(ctx context.Context, userId string, req *rest.StartSessionRequest) (*rest.StartSessionResponse, error) {
	if err := validateDestinations(req.Destinations); err != nil {
		return nil, err
	}

	session := &Session{
		SessionId: uuid.NewString(),
		UserId:    userId,
		StartTime: time.Now(),
		Title:     req.Title,
	}
	pipelines := make([]*EncoderPipeline, 0, len(req.Destinations))
	for _, destination := range req.Destinations {
		pipelines = append(pipelines, newEncoderPipeline(
			destination, s.compiler, s.queueSize, s.liveAfter, s.stopGrace))
	}
	session.pipelines = pipelines
	session.relay = newIngestRelay(pipelines)

	// registered before spawning: the atomic insert is what makes a losing
	// concurrent start create no pipelines
	if err := s.registry.Register(userId, session); err != nil {
		return nil, err
	}

	for _, p := range pipelines {
		if err := p.Start(); err != nil {
			logger.SError("SessionService.StartSession: pipeline spawn failed",
				zap.String("sessionId", session.SessionId),
				zap.String("destination", p.Destination().Name),
				zap.Error(err))
		}
	}

	logger.SInfo("SessionService.StartSession: session started",
		zap.String("sessionId", session.SessionId),
		zap.String("userId", userId),
		zap.Int("destinations", len(pipelines)))

	s.publishEvent(ctx, &events.SessionEvent{
		Type:         events.SessionEvent_Started,
		SessionId:    session.SessionId,
		UserId:       userId,
		Timestamp:    session.StartTime,
		Destinations: session.DestinationStatuses(),
	})

	return &rest.StartSessionResponse{
		SessionId:    session.SessionId,
		Destinations: session.DestinationStatuses(),
	}, nil
}

func validateDestinations(destinations []rest.Destination) error {
	if len(destinations) == 0 {
		return custerror.FormatInvalidArgument("destinations must not be empty")
	}
	seen := map[string]bool{}
	for _, d := range destinations {
		if d.Platform == "" || d.StreamUrl == "" {
			return custerror.FormatInvalidArgument("destination %q is missing platform or streamUrl", d.Name)
		}
		key := fmt.Sprintf("%s|%s|%s", d.Platform, d.Name, d.StreamUrl)
		if seen[key] {
			return custerror.FormatInvalidArgument("duplicate destination %q for platform %s", d.Name, d.Platform)
		}
		seen[key] = true
	}
	return nil
}

// StopSession claims the user's session from the registry and tears it down:
// the relay is closed, then every pipeline is terminated regardless of its
// current status.
func (s *SessionService) StopSession(ctx context.Context, userId string) (*rest.StopSessionResponse, error) {
	session, err := s.registry.Unregister(userId)
	if err != nil {
		return nil, err
	}

	session.relay.Close()

	if err := flowmatic.Each(4, session.pipelines, func(p *EncoderPipeline) error {
		return p.Stop()
	}); err != nil {
		logger.SError("SessionService.StopSession: pipeline stop err",
			zap.String("sessionId", session.SessionId),
			zap.Error(err))
	}

	endedAt := time.Now()
	duration := int64(endedAt.Sub(session.StartTime).Seconds())
	if duration < 0 {
		duration = 0
	}

	statuses := session.DestinationStatuses()

	s.journalSession(ctx, session, endedAt, duration, statuses)
	s.publishEvent(ctx, &events.SessionEvent{
		Type:         events.SessionEvent_Stopped,
		SessionId:    session.SessionId,
		UserId:       userId,
		Timestamp:    endedAt,
		Duration:     duration,
		Destinations: statuses,
	})

	logger.SInfo("SessionService.StopSession: session stopped",
		zap.String("sessionId", session.SessionId),
		zap.String("userId", userId),
		zap.Int64("duration", duration))

	return &rest.StopSessionResponse{
		Duration:     duration,
		Destinations: statuses,
	}, nil
}

func (s *SessionService) Status(ctx context.Context, userId string) (*rest.SessionStatusResponse, error) {
	session, found := s.registry.Lookup(userId)
	if !found {
		return &rest.SessionStatusResponse{Active: false}, nil
	}
	startTime := session.StartTime
	return &rest.SessionStatusResponse{
		Active:       true,
		SessionId:    session.SessionId,
		StartTime:    &startTime,
		Duration:     int64(time.Since(session.StartTime).Seconds()),
		Destinations: session.DestinationStatuses(),
	}, nil
}

func (s *SessionService) History(ctx context.Context) (*rest.SessionHistoryResponse, error) {
	if s.journal == nil {
		return &rest.SessionHistoryResponse{}, nil
	}

	var records []db.SessionRecord
	query := sq.
		Select("session_id", "user_id", "started_at", "ended_at", "duration_secs", "destinations").
		From("session_records").
		OrderBy("started_at DESC").
		Limit(50)
	if err := s.journal.Select(ctx, query, &records); err != nil {
		return nil, err
	}

	resp := &rest.SessionHistoryResponse{}
	for _, record := range records {
		entry := rest.SessionHistoryEntry{
			SessionId: record.SessionId,
			UserId:    record.UserId,
			StartedAt: record.StartedAt,
			EndedAt:   record.EndedAt,
			Duration:  record.DurationSecs,
		}
		if err := sonic.UnmarshalString(record.Destinations, &entry.Destinations); err != nil {
			logger.SDebug("SessionService.History: destinations unmarshal err",
				zap.String("sessionId", record.SessionId),
				zap.Error(err))
		}
		resp.Sessions = append(resp.Sessions, entry)
	}
	return resp, nil
}

func (s *SessionService) DebugListSessions(ctx context.Context) (*rest.DebugListSessionsResponse, error) {
	resp := &rest.DebugListSessionsResponse{}
	for _, session := range s.registry.Snapshot() {
		resp.Sessions = append(resp.Sessions, rest.DebugSessionInfo{
			SessionId:    session.SessionId,
			UserId:       session.UserId,
			StartTime:    session.StartTime,
			Destinations: session.DestinationStatuses(),
		})
	}
	return resp, nil
}

func (s *SessionService) journalSession(ctx context.Context, session *Session, endedAt time.Time, duration int64, statuses []rest.DestinationStatus) {
	if s.journal == nil {
		return
	}
	encoded, err := sonic.MarshalString(statuses)
	if err != nil {
		logger.SError("SessionService.journalSession: marshal err", zap.Error(err))
		return
	}
	if err := s.journal.Insert(ctx, &db.SessionRecord{
		SessionId:    session.SessionId,
		UserId:       session.UserId,
		StartedAt:    session.StartTime,
		EndedAt:      endedAt,
		DurationSecs: duration,
		Destinations: encoded,
	}); err != nil {
		logger.SError("SessionService.journalSession: insert err",
			zap.String("sessionId", session.SessionId),
			zap.Error(err))
	}
}

func (s *SessionService) publishEvent(ctx context.Context, event *events.SessionEvent) {
	if !s.publishEvents {
		return
	}
	payload, err := sonic.Marshal(event)
	if err != nil {
		logger.SError("SessionService.publishEvent: marshal err", zap.Error(err))
		return
	}
	custmqtt.Publish(ctx, sessionEventTopicPrefix+event.SessionId, payload)
}

// Shutdown tears down every remaining session, used on process exit.
func (s *SessionService) Shutdown() {
	logger.SInfo("SessionService.Shutdown: shutdown received")
	for _, session := range s.registry.Snapshot() {
		if _, err := s.StopSession(context.Background(), session.UserId); err != nil {
			logger.SDebug("SessionService.Shutdown: stop err",
				zap.String("userId", session.UserId),
				zap.Error(err))
		}
	}
}
