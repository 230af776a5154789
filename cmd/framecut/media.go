package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"framecut/internal/config"
	"framecut/internal/media/ffprobe"
	"framecut/internal/services"
)

// videoInfo is the stream geometry a detect run needs.
type videoInfo struct {
	Path     string  `json:"path"`
	Codec    string  `json:"codec"`
	PixFmt   string  `json:"pix_fmt,omitempty"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration_seconds"`
	Size     int64   `json:"size_bytes"`
}

func probeVideo(ctx context.Context, prober *ffprobe.Prober, path string) (videoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return videoInfo{}, services.Wrap(services.ErrNotFound, "probe", "stat", path, err)
		}
		return videoInfo{}, services.Wrap(services.ErrValidation, "probe", "stat", path, err)
	}
	result, err := prober.Inspect(ctx, path)
	if err != nil {
		return videoInfo{}, err
	}
	stream, ok := result.VideoStream()
	if !ok {
		return videoInfo{}, services.Wrap(services.ErrValidation, "probe", "video stream", fmt.Sprintf("%s has no video stream", path), nil)
	}
	fps := result.FrameRate()
	if fps <= 0 {
		return videoInfo{}, services.Wrap(services.ErrValidation, "probe", "frame rate", fmt.Sprintf("%s reports no frame rate", path), nil)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return videoInfo{}, services.Wrap(services.ErrValidation, "probe", "frame size",
			fmt.Sprintf("%s reports %dx%d", path, stream.Width, stream.Height), nil)
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration < 0 {
		duration = 0
	}
	return videoInfo{
		Path:     path,
		Codec:    stream.CodecName,
		PixFmt:   stream.PixFmt,
		Width:    stream.Width,
		Height:   stream.Height,
		FPS:      fps,
		Frames:   result.FrameCount(),
		Duration: duration,
		Size:     result.SizeBytes(),
	}, nil
}

func newProber(cfg *config.Config) *ffprobe.Prober {
	return ffprobe.NewProber(cfg.FFprobeBinary(), cfg.ProbeCacheTTL())
}
