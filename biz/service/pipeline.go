package service

import (
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/polycast/relay/internal/configs"
	custerror "github.com/polycast/relay/internal/error"
	custff "github.com/polycast/relay/internal/ffmpeg"
	"github.com/polycast/relay/internal/logger"
	"github.com/polycast/relay/models/rest"

	"go.uber.org/zap"
)

type PipelineStatus string

const (
	Pipeline_Connecting PipelineStatus = "connecting"
	Pipeline_Live       PipelineStatus = "live"
	Pipeline_Error      PipelineStatus = "error"
	Pipeline_Stopped    PipelineStatus = "stopped"
)

// CommandCompiler builds the encoding subprocess for one destination. The
// default compiles the fixed ffmpeg publish profile; tests substitute stub
// commands.
type CommandCompiler func(destination rest.Destination) *exec.Cmd

func DefaultCommandCompiler(ffmpegConfigs *configs.FfmpegConfigs) CommandCompiler {
	return func(destination rest.Destination) *exec.Cmd {
		return custff.CompilePublishCommand(destination.PublishUrl(), ffmpegConfigs)
	}
}

// EncoderPipeline bridges the relay's chunk stream to one remote endpoint via
// an external encoding subprocess. It is owned by exactly one session and
// never shared.
type EncoderPipeline struct {
	destination rest.Destination
	compile     CommandCompiler
	liveAfter   time.Duration
	stopGrace   time.Duration

	mu        sync.Mutex
	status    PipelineStatus
	proc      *exec.Cmd
	stdin     io.WriteCloser
	queue     chan []byte
	accepting bool
	stopping  bool
	liveTimer *time.Timer

	done chan struct{}
}

func newEncoderPipeline(destination rest.Destination, compile CommandCompiler, queueSize int, liveAfter time.Duration, stopGrace time.Duration) *EncoderPipeline {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &EncoderPipeline{
		destination: destination,
		compile:     compile,
		liveAfter:   liveAfter,
		stopGrace:   stopGrace,
		status:      Pipeline_Connecting,
		queue:       make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
}

func (p *EncoderPipeline) Destination() rest.Destination {
	return p.destination
}

func (p *EncoderPipeline) Status() PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *EncoderPipeline) DestinationStatus() rest.DestinationStatus {
	return rest.DestinationStatus{
		Platform: p.destination.Platform,
		Name:     p.destination.Name,
		Status:   string(p.Status()),
	}
}

// Start spawns the subprocess. A spawn failure marks this pipeline errored and
// is reported to the caller, it never affects sibling pipelines.
func (p *EncoderPipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := p.compile(p.destination)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.status = Pipeline_Error
		close(p.done)
		return custerror.FormatInternalError("EncoderPipeline.Start: stdin pipe err = %s", err)
	}

	if err := cmd.Start(); err != nil {
		p.status = Pipeline_Error
		close(p.done)
		logger.SError("EncoderPipeline.Start: spawn failed",
			zap.String("destination", p.destination.Name),
			zap.Error(err))
		return custerror.FormatInternalError("EncoderPipeline.Start: spawn err = %s", err)
	}

	p.proc = cmd
	p.stdin = stdin
	p.accepting = true

	p.liveTimer = time.AfterFunc(p.liveAfter, p.markLive)

	go p.writeLoop()
	go p.waitForExit()

	logger.SDebug("EncoderPipeline.Start: subprocess spawned",
		zap.String("destination", p.destination.Name),
		zap.Int("pid", cmd.Process.Pid))
	return nil
}

// markLive is the documented simplification: no acknowledgment channel exists
// from the remote endpoint, so surviving the grace interval counts as live.
func (p *EncoderPipeline) markLive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == Pipeline_Connecting {
		p.status = Pipeline_Live
		logger.SInfo("EncoderPipeline: destination live",
			zap.String("destination", p.destination.Name),
			zap.String("platform", p.destination.Platform))
	}
}

// Feed enqueues one chunk for the subprocess. It never blocks: when the queue
// is full the oldest chunk is dropped so that a stalled destination cannot
// hold back its siblings.
func (p *EncoderPipeline) Feed(chunk []byte) error {
	p.mu.Lock()
	if !p.accepting {
		status := p.status
		p.mu.Unlock()
		return custerror.FormatFailedPrecondition("pipeline %s not accepting input, status = %s", p.destination.Name, status)
	}

	select {
	case p.queue <- chunk:
	default:
		select {
		case dropped := <-p.queue:
			logger.SWarn("EncoderPipeline.Feed: queue full, dropped oldest chunk",
				zap.String("destination", p.destination.Name),
				zap.Int("droppedBytes", len(dropped)))
		default:
		}
		select {
		case p.queue <- chunk:
		default:
		}
	}
	p.mu.Unlock()
	return nil
}

// writeLoop is the single consumer of the queue, preserving chunk order for
// this destination.
func (p *EncoderPipeline) writeLoop() {
	failed := false
	for chunk := range p.queue {
		if failed {
			continue
		}
		if _, err := p.stdin.Write(chunk); err != nil {
			failed = true
			p.markWriteFailure(err)
		}
	}
	p.stdin.Close()
}

func (p *EncoderPipeline) markWriteFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return
	}
	p.accepting = false
	p.status = Pipeline_Error
	logger.SError("EncoderPipeline: input write failed",
		zap.String("destination", p.destination.Name),
		zap.Error(err))
}

func (p *EncoderPipeline) waitForExit() {
	err := p.proc.Wait()

	p.mu.Lock()
	if p.liveTimer != nil {
		p.liveTimer.Stop()
	}
	p.accepting = false
	switch {
	case p.status == Pipeline_Error:
		// keep the earlier verdict
	case p.stopping:
		p.status = Pipeline_Stopped
	case err != nil:
		p.status = Pipeline_Error
		logger.SError("EncoderPipeline: subprocess exited abnormally",
			zap.String("destination", p.destination.Name),
			zap.Error(err))
	default:
		p.status = Pipeline_Stopped
	}
	p.mu.Unlock()

	close(p.done)
}

// Stop closes the pipeline's input and waits for a graceful exit, forcing
// termination after the grace period. Safe to call in any state.
func (p *EncoderPipeline) Stop() error {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.stopping = true
	p.accepting = false
	close(p.queue)
	proc := p.proc
	p.mu.Unlock()

	if proc == nil {
		// spawn never succeeded, nothing to terminate
		return nil
	}

	select {
	case <-p.done:
	case <-time.After(p.stopGrace):
		logger.SWarn("EncoderPipeline.Stop: grace period elapsed, killing subprocess",
			zap.String("destination", p.destination.Name))
		if err := proc.Process.Kill(); err != nil {
			logger.SDebug("EncoderPipeline.Stop: kill err", zap.Error(err))
		}
		<-p.done
	}

	logger.SDebug("EncoderPipeline.Stop: terminated",
		zap.String("destination", p.destination.Name),
		zap.String("status", string(p.Status())))
	return nil
}
