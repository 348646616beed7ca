package video

import (
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// probeDuration reads the duration of a media file in seconds using
// ffprobe. It returns 0 when ffprobe is unavailable or the file cannot
// be parsed, so a publish never fails on a probe error.
func probeDuration(filePath string) float64 {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		slog.Error("probe: ffprobe failed", "path", filePath, "error", err)
		return 0
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		slog.Error("probe: failed to parse duration", "value", durationStr, "error", err)
		return 0
	}
	if duration < 0 {
		return 0
	}
	return duration
}
