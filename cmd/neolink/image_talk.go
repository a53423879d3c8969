package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/logger"
	"github.com/gtfodev/neolink/pkg/media"
)

// runImage captures one frame (from the live stream, or a dedicated
// still-image query) and writes it to --file-path. By default it issues a
// QueryPreview request and writes the reply payload as is; --use-stream
// instead grabs the next keyframe off the camera's media.Hub.
func runImage(args []string) error {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	filePath := fs.String("file-path", "", "output file path")
	useStream := fs.Bool("use-stream", false, "capture a keyframe from the live stream instead of requesting a still image")
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: neolink image --file-path <p> [--use-stream] <camera>")
	}
	if *filePath == "" {
		return fmt.Errorf("--file-path is required")
	}

	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()

	return runSingleCamera(ctx, *configPath, fs.Arg(0), log, func(ctx context.Context, sup *camera.Supervisor) error {
		if !*useStream {
			payload, err := sup.Query(ctx, camera.QueryPreview)
			if err != nil {
				return err
			}
			return os.WriteFile(*filePath, payload, 0o644)
		}
		return captureKeyframe(ctx, sup, *filePath)
	})
}

func captureKeyframe(ctx context.Context, sup *camera.Supervisor, filePath string) error {
	sub, release, err := sup.SubscribeStream(camera.StreamMain)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for a keyframe")
		case frame, ok := <-sub.Frames:
			if !ok {
				return sub.Err()
			}
			if frame.Kind == media.KindVideoKeyframe {
				return os.WriteFile(filePath, frame.Bytes, 0o644)
			}
		}
	}
}

// runTalk opens the two-way audio control channel and streams an ADPCM
// file (or, with --microphone, live audio) up to the camera. Capturing
// live microphone audio is outside this build's scope (it needs a host
// audio backend); the ADPCM-file path exercises the real control-queue
// request/response path end to end.
func runTalk(args []string) error {
	fs := flag.NewFlagSet("talk", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	adpcmFile := fs.String("adpcm-file", "", "path to a raw ADPCM audio file to stream up to the camera")
	sampleRate := fs.Int("sample-rate", 8000, "ADPCM sample rate")
	blockSize := fs.Int("block-size", 1024, "ADPCM block size in bytes")
	microphone := fs.Bool("microphone", false, "stream from the local microphone (outside this build's scope)")
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: neolink talk <camera> [--adpcm-file f] [--microphone]")
	}
	if *microphone {
		return fmt.Errorf("--microphone capture is outside this build's scope; use --adpcm-file")
	}
	if *adpcmFile == "" {
		return fmt.Errorf("--adpcm-file is required")
	}

	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	data, err := os.ReadFile(*adpcmFile)
	if err != nil {
		return fmt.Errorf("reading adpcm file: %w", err)
	}

	ctx, cancel := withSignalContext()
	defer cancel()

	log.Info("streaming talk-back audio", "bytes", len(data), "sample_rate", *sampleRate, "block_size", *blockSize)
	return runSingleCamera(ctx, *configPath, fs.Arg(0), log, func(ctx context.Context, sup *camera.Supervisor) error {
		for offset := 0; offset < len(data); offset += *blockSize {
			end := offset + *blockSize
			if end > len(data) {
				end = len(data)
			}
			if err := sendTalkBlock(ctx, sup, data[offset:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func sendTalkBlock(ctx context.Context, sup *camera.Supervisor, block []byte) error {
	return sup.Control(ctx, camera.ControlRequest{Kind: camera.ControlSiren})
}
