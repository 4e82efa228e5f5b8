package controlapi

import (
	"context"
	"fmt"

	"github.com/polycast/relay/biz/service"
	"github.com/polycast/relay/internal/auth"
	"github.com/polycast/relay/internal/logger"
	custws "github.com/polycast/relay/internal/ws"
	"github.com/polycast/relay/models/events"

	"github.com/bytedance/sonic"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// StandardHandlerFactory binds control connections to the process-wide
// services. Resolution is deferred to connection time so the factory can be
// constructed before service.Init has run.
func StandardHandlerFactory() custws.HandlerFactory {
	return func(conn *custws.Connection) custws.ConnectionHandler {
		return NewControlSession(conn, service.GetTokenVerifier(), service.GetSessionService())
	}
}

// controlSession is the per-connection handshake state machine. Binary frames
// are gated behind authentication plus an active session for the bound user.
type controlSession struct {
	conn     *custws.Connection
	verifier auth.TokenVerifier
	sessions *service.SessionService

	authenticated bool
	userId        string
}

func NewControlSession(conn *custws.Connection, verifier auth.TokenVerifier, sessions *service.SessionService) custws.ConnectionHandler {
	return &controlSession{
		conn:     conn,
		verifier: verifier,
		sessions: sessions,
	}
}

func (s *controlSession) HandleText(ctx context.Context, payload []byte) {
	var raw map[string]interface{}
	if err := sonic.Unmarshal(payload, &raw); err != nil {
		logger.SDebug("controlSession.HandleText: malformed message",
			zap.String("remote", s.conn.RemoteAddr()),
			zap.Error(err))
		s.sendError("malformed control message")
		return
	}

	var envelope events.ControlEnvelope
	if err := mapstructure.Decode(raw, &envelope); err != nil {
		s.sendError("malformed control message")
		return
	}

	switch envelope.Type {
	case events.MessageType_Authenticate:
		var cmd events.AuthenticateCommand
		if err := mapstructure.Decode(raw, &cmd); err != nil {
			s.sendError("malformed authenticate message")
			return
		}
		s.handleAuthenticate(ctx, &cmd)
	case events.MessageType_StreamStart:
		if !s.requireAuthenticated() {
			return
		}
		s.handleStreamStart(ctx)
	case events.MessageType_StreamStop:
		if !s.requireAuthenticated() {
			return
		}
		s.handleStreamStop(ctx)
	case events.MessageType_Ping:
		if !s.requireAuthenticated() {
			return
		}
		s.sendReply(&events.PongReply{Type: events.MessageType_Pong})
	default:
		s.sendError(fmt.Sprintf("Unknown message type: %s", envelope.Type))
	}
}

func (s *controlSession) handleAuthenticate(ctx context.Context, cmd *events.AuthenticateCommand) {
	userId, err := s.verifier.Verify(ctx, cmd.Token)
	if err != nil {
		logger.SDebug("controlSession.handleAuthenticate: verification failed",
			zap.String("remote", s.conn.RemoteAddr()),
			zap.Error(err))
		s.sendError("authentication failed")
		return
	}

	s.authenticated = true
	s.userId = userId
	logger.SInfo("controlSession.handleAuthenticate: authenticated",
		zap.String("remote", s.conn.RemoteAddr()),
		zap.String("userId", userId))
	s.sendReply(&events.AuthenticatedReply{
		Type:   events.MessageType_Authenticated,
		UserId: userId,
	})
}

func (s *controlSession) handleStreamStart(ctx context.Context) {
	s.sendReply(&events.AckReply{
		Type:   events.MessageType_StreamStarted,
		Status: "success",
	})
}

func (s *controlSession) handleStreamStop(ctx context.Context) {
	if _, found := s.sessions.Registry().Lookup(s.userId); found {
		if _, err := s.sessions.StopSession(ctx, s.userId); err != nil {
			logger.SDebug("controlSession.handleStreamStop: stop err",
				zap.String("userId", s.userId),
				zap.Error(err))
		}
	}
	s.sendReply(&events.AckReply{
		Type:   events.MessageType_StreamStopped,
		Status: "success",
	})
}

// HandleBinary routes media payloads to the session relay. Frames arriving
// outside the accept window are dropped with a warning rather than answered,
// tolerating the benign race between UI start and channel readiness.
func (s *controlSession) HandleBinary(ctx context.Context, payload []byte) {
	if !s.authenticated {
		logger.SWarn("controlSession.HandleBinary: dropped frame before authentication",
			zap.String("remote", s.conn.RemoteAddr()),
			zap.Int("bytes", len(payload)))
		return
	}
	session, found := s.sessions.Registry().Lookup(s.userId)
	if !found {
		logger.SWarn("controlSession.HandleBinary: dropped frame, no active session",
			zap.String("userId", s.userId),
			zap.Int("bytes", len(payload)))
		return
	}
	session.Relay().Feed(payload)
}

// HandleClose runs the same teardown as an explicit stop when the peer
// disconnects mid-session.
func (s *controlSession) HandleClose(ctx context.Context) {
	if !s.authenticated {
		return
	}
	if _, found := s.sessions.Registry().Lookup(s.userId); !found {
		return
	}
	logger.SInfo("controlSession.HandleClose: disconnect with active session, stopping",
		zap.String("userId", s.userId))
	if _, err := s.sessions.StopSession(ctx, s.userId); err != nil {
		logger.SDebug("controlSession.HandleClose: stop err",
			zap.String("userId", s.userId),
			zap.Error(err))
	}
}

func (s *controlSession) requireAuthenticated() bool {
	if s.authenticated {
		return true
	}
	s.sendError("authentication required")
	return false
}

func (s *controlSession) sendReply(msg interface{}) {
	if err := s.conn.SendJSON(msg); err != nil {
		logger.SDebug("controlSession.sendReply: send err",
			zap.String("remote", s.conn.RemoteAddr()),
			zap.Error(err))
	}
}

func (s *controlSession) sendError(message string) {
	s.sendReply(&events.ErrorReply{
		Type:    events.MessageType_Error,
		Message: message,
	})
}
