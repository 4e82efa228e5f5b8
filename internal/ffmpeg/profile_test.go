package custff

import (
	"strings"
	"testing"

	"github.com/polycast/relay/internal/configs"
)

func Test_PublishCommand(t *testing.T) {
	destinationUrl := "rtmp://a.rtmp.youtube.com/live2/stream-key"
	cmd := CompilePublishCommand(destinationUrl, &configs.FfmpegConfigs{})

	args := strings.Join(cmd.Args, " ")
	t.Log(args)

	for _, want := range []string{
		"pipe:0",
		"libx264",
		"aac",
		"zerolatency",
		"-f flv",
		destinationUrl,
	} {
		if !strings.Contains(args, want) {
			t.Errorf("compiled command missing %q: %s", want, args)
		}
	}
}

func Test_PublishCommand_BinaryPath(t *testing.T) {
	cmd := CompilePublishCommand("rtmp://x.example/live/key", &configs.FfmpegConfigs{
		BinaryPath: "./bin/ffmpeg",
	})
	if !strings.HasSuffix(cmd.Args[0], "/bin/ffmpeg") {
		t.Errorf("binary path not applied: %s", cmd.Args[0])
	}
}
