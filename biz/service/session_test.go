package service

import (
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polycast/relay/internal/configs"
	custerror "github.com/polycast/relay/internal/error"
	"github.com/polycast/relay/models/rest"
)

func newTestSessionService(compiler CommandCompiler) *SessionService {
	return NewSessionService(
		WithRegistry(NewSessionRegistry()),
		WithCommandCompiler(compiler))
}

func assertErrorCode(t *testing.T, err error, code uint32) {
	t.Helper()
	var custErr *custerror.CustomError
	if !errors.As(err, &custErr) {
		t.Fatalf("expected CustomError, got %T: %v", err, err)
	}
	if custErr.Code != code {
		t.Fatalf("expected code %d, got %d: %s", code, custErr.Code, custErr.Message)
	}
}

func Test_SessionService_RejectsInvalidDestinations(t *testing.T) {
	s := newTestSessionService(catCompiler(nil))

	for _, req := range []*rest.StartSessionRequest{
		{},
		{Destinations: []rest.Destination{{Platform: "", Name: "a", StreamUrl: "rtmp://x"}}},
		{Destinations: []rest.Destination{{Platform: "rtmp", Name: "a", StreamUrl: ""}}},
		{Destinations: []rest.Destination{
			{Platform: "rtmp", Name: "a", StreamUrl: "rtmp://x"},
			{Platform: "rtmp", Name: "a", StreamUrl: "rtmp://x"},
		}},
	} {
		_, err := s.StartSession(context.Background(), "alice", req)
		assertErrorCode(t, err, custerror.CodeInvalidArgument)
	}

	if _, found := s.Registry().Lookup("alice"); found {
		t.Fatal("invalid request must not leave a session behind")
	}
}

func Test_SessionService_ConflictCreatesNoPipelines(t *testing.T) {
	var spawns atomic.Int32
	compiler := func(destination rest.Destination) *exec.Cmd {
		spawns.Add(1)
		return exec.Command("cat")
	}
	s := newTestSessionService(compiler)

	req := &rest.StartSessionRequest{Destinations: []rest.Destination{
		testDestination("a"),
		testDestination("b"),
	}}

	if _, err := s.StartSession(context.Background(), "alice", req); err != nil {
		t.Fatalf("first start failed: %s", err)
	}
	_, err := s.StartSession(context.Background(), "alice", req)
	assertErrorCode(t, err, custerror.CodeAlreadyExists)

	if got := spawns.Load(); got != 2 {
		t.Fatalf("losing start must spawn nothing, got %d spawns", got)
	}

	if _, err := s.StopSession(context.Background(), "alice"); err != nil {
		t.Fatalf("stop failed: %s", err)
	}
}

func Test_SessionService_StopWithoutSession(t *testing.T) {
	s := newTestSessionService(catCompiler(nil))
	_, err := s.StopSession(context.Background(), "nobody")
	assertErrorCode(t, err, custerror.CodeNotFound)
}

// Exercises the whole session arc: two destinations go live, one encoder dies
// mid-session, the survivor keeps receiving, then an explicit stop tears both
// down and reports per-destination outcomes.
func Test_SessionService_FullArc(t *testing.T) {
	out := &syncBuffer{}
	compiler := func(destination rest.Destination) *exec.Cmd {
		if destination.Name == "flaky" {
			// consumes one chunk then dies
			return exec.Command("sh", "-c", "head -c 1 >/dev/null; exit 1")
		}
		cmd := exec.Command("cat")
		cmd.Stdout = out
		return cmd
	}
	s := NewSessionService(
		WithRegistry(NewSessionRegistry()),
		WithCommandCompiler(compiler),
		WithRelayConfigs(&configs.RelayConfigs{
			ChunkQueueSize: 16,
			LiveAfterMs:    50,
			StopGraceMs:    500,
		}))

	req := &rest.StartSessionRequest{
		Title: "launch day",
		Destinations: []rest.Destination{
			{Platform: "rtmp", Name: "steady", StreamUrl: "rtmp://a.example/live", StreamKey: "k1"},
			{Platform: "rtmp", Name: "flaky", StreamUrl: "rtmp://b.example/live", StreamKey: "k2"},
		},
	}
	resp, err := s.StartSession(context.Background(), "alice", req)
	if err != nil {
		t.Fatalf("start failed: %s", err)
	}
	if len(resp.Destinations) != 2 {
		t.Fatalf("expected 2 destination statuses, got %d", len(resp.Destinations))
	}

	session, found := s.Registry().Lookup("alice")
	if !found {
		t.Fatal("session missing after start")
	}

	var steady, flaky *EncoderPipeline
	for _, p := range session.Pipelines() {
		if p.Destination().Name == "flaky" {
			flaky = p
		} else {
			steady = p
		}
	}

	waitForStatus(t, steady, Pipeline_Live, time.Second)

	session.Relay().Feed([]byte("x"))
	waitForStatus(t, flaky, Pipeline_Error, time.Second*2)

	if steady.Status() != Pipeline_Live {
		t.Fatalf("surviving pipeline degraded to %s", steady.Status())
	}
	session.Relay().Feed([]byte("yz"))

	status, err := s.Status(context.Background(), "alice")
	if err != nil {
		t.Fatalf("status failed: %s", err)
	}
	if !status.Active || status.SessionId != session.SessionId {
		t.Fatalf("unexpected status: %+v", status)
	}

	stop, err := s.StopSession(context.Background(), "alice")
	if err != nil {
		t.Fatalf("stop failed: %s", err)
	}
	if stop.Duration < 0 {
		t.Fatalf("negative duration %d", stop.Duration)
	}
	for _, d := range stop.Destinations {
		switch d.Name {
		case "steady":
			if d.Status != string(Pipeline_Stopped) {
				t.Fatalf("steady should stop cleanly, got %s", d.Status)
			}
		case "flaky":
			if d.Status != string(Pipeline_Error) {
				t.Fatalf("flaky should keep its error, got %s", d.Status)
			}
		}
	}

	if out.String() != "xyz" {
		t.Fatalf("survivor lost data: %q", out.String())
	}

	after, err := s.Status(context.Background(), "alice")
	if err != nil {
		t.Fatalf("status failed: %s", err)
	}
	if after.Active {
		t.Fatal("session still active after stop")
	}
}
