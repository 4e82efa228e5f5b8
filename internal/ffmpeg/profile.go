package custff

import (
	"os/exec"
	"path/filepath"

	"github.com/polycast/relay/internal/configs"
	"github.com/polycast/relay/internal/logger"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// NewPublishStream builds the fixed-profile publish pipeline: stdin in, one
// remote endpoint out. The encode profile is not negotiable per destination.
func NewPublishStream(destinationUrl string, c *configs.FfmpegConfigs) *ffmpeg_go.Stream {
	cmd := ffmpeg_go.Input("pipe:0").
		Output(destinationUrl, ffmpeg_go.KwArgs{
			"c:v":       "libx264",
			"c:a":       "aac",
			"b:v":       "4500k",
			"b:a":       "128k",
			"ar":        "44100",
			"preset":    "veryfast",
			"tune":      "zerolatency",
			"profile:v": "baseline",
			"g":         "60",
			"f":         "flv",
		}).ErrorToStdOut().
		WithCpuCoreLimit(2)

	if c != nil && c.BinaryPath != "" {
		absPath, err := filepath.Abs(c.BinaryPath)
		if err != nil {
			logger.SError("NewPublishStream: filepath.Abs", zap.Error(err))
		} else {
			cmd.SetFfmpegPath(absPath)
		}
	}
	return cmd
}

func CompilePublishCommand(destinationUrl string, c *configs.FfmpegConfigs) *exec.Cmd {
	return NewPublishStream(destinationUrl, c).Compile()
}
