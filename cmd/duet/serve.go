/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the duet project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"duet/internal/backend"
	"duet/internal/ipc"
	"duet/internal/library"
	"duet/internal/logger"
	"duet/pkg/playback"
)

var (
	serveSocket   string
	serveAutoplay bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [library paths...]",
	Short: "Run the playback engine behind the control socket",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveSocket, "socket", "s", "", "control socket path (default from config)")
	serveCmd.Flags().BoolVarP(&serveAutoplay, "autoplay", "a", false, "start playing the first track")
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Debug("config loaded", zap.Any("config", cfg.Redacted()))

	socket := cfg.Server.Socket
	if serveSocket != "" {
		socket = serveSocket
	}

	out, err := backend.NewOutput(backend.Config{
		SampleRate: cfg.Audio.SampleRate,
		BufferMs:   cfg.Audio.BufferMs,
		Passphrase: cfg.Audio.Passphrase,
	}, log.Named("backend"))
	if err != nil {
		return err
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	opts = append(opts,
		playback.WithLogger(log.Named("engine")),
		playback.WithSink(playback.SinkFunc(func(ev playback.Event) {
			log.Debug("event",
				zap.String("type", string(ev.Type)),
				zap.Int("index", ev.CurrentIndex),
				zap.Int("position_ms", ev.PositionMs),
				zap.Bool("playing", ev.Playing),
				zap.String("error", ev.Error))
		})),
	)
	engine := playback.New(out, opts...)

	scanner := library.NewScanner(log.Named("library"))
	paths := append([]string(nil), cfg.Server.Library...)
	paths = append(paths, args...)
	if len(paths) == 0 && cfg.Server.Playlist != "" {
		if _, err := os.Stat(cfg.Server.Playlist); err == nil {
			paths = append(paths, cfg.Server.Playlist)
		}
	}
	if len(paths) > 0 {
		tracks, err := scanner.Scan(paths...)
		if err != nil {
			log.Warn("library scan failed", zap.Error(err))
		} else {
			engine.LoadPlaylist(tracks)
			if (serveAutoplay || cfg.Server.Autoplay) && len(tracks) > 0 {
				engine.PlayAt(0)
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := ipc.NewServer(engine, scanner, cfg.Server.Playlist, log.Named("ipc"))
	serveErr := srv.ListenAndServe(ctx, socket)

	log.Info("shutting down")
	engine.Close()
	out.Close()
	if serveErr != nil {
		return fmt.Errorf("control socket: %w", serveErr)
	}
	return nil
}
