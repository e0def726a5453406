/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the duet project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"duet/internal/codec"
	"duet/internal/container"
)

var (
	infoJSON    bool
	infoArtDump string
)

var infoCmd = &cobra.Command{
	Use:   "info <track.duet>",
	Short: "Show the metadata of a .duet track",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVarP(&infoJSON, "json", "j", false, "output as JSON")
	infoCmd.Flags().StringVar(&infoArtDump, "artdump", "", "write the embedded artwork to this file")
}

type trackInfo struct {
	File          string `json:"file"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	DurationMs    int    `json:"duration_ms"`
	Encrypted     bool   `json:"encrypted"`
	Frames        int    `json:"frames"`
	AudioBytes    int64  `json:"audio_bytes"`
	ArtworkWidth  int    `json:"artwork_width,omitempty"`
	ArtworkHeight int    `json:"artwork_height,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, art, err := readInfo(args[0])
	if err != nil {
		return err
	}
	if infoArtDump != "" {
		if len(art) == 0 {
			return fmt.Errorf("%s has no artwork", args[0])
		}
		if err := os.WriteFile(infoArtDump, art, 0o644); err != nil {
			return err
		}
	}
	return printInfo(cmd.OutOrStdout(), info, infoJSON)
}

func readInfo(path string) (trackInfo, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return trackInfo{}, nil, err
	}
	defer f.Close()

	tf, err := container.Unpack(f)
	if err != nil {
		return trackInfo{}, nil, err
	}
	info := trackInfo{
		File:       filepath.Base(path),
		Title:      tf.Title,
		Artist:     tf.Artist,
		DurationMs: tf.DurationMs,
		Encrypted:  tf.Encrypted,
		AudioBytes: tf.AudioSize,
	}

	frames := tf.Frames(f)
	for {
		if _, err := frames.Next(); err != nil {
			if err != io.EOF {
				return info, nil, fmt.Errorf("frame %d: %w", info.Frames, err)
			}
			break
		}
		info.Frames++
	}

	if len(tf.Artwork) > 0 {
		if w, h, err := codec.ArtworkBounds(tf.Artwork); err == nil {
			info.ArtworkWidth, info.ArtworkHeight = w, h
		}
	}
	return info, tf.Artwork, nil
}

func printInfo(w io.Writer, info trackInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(w, "File      : %s\n", info.File)
	fmt.Fprintf(w, "Title     : %s\n", info.Title)
	fmt.Fprintf(w, "Artist    : %s\n", info.Artist)
	fmt.Fprintf(w, "Duration  : %s\n", (time.Duration(info.DurationMs) * time.Millisecond).Round(time.Second))
	fmt.Fprintf(w, "Encrypted : %v\n", info.Encrypted)
	fmt.Fprintf(w, "Frames    : %d (%d bytes)\n", info.Frames, info.AudioBytes)
	if info.ArtworkWidth > 0 {
		fmt.Fprintf(w, "Artwork   : %dx%d\n", info.ArtworkWidth, info.ArtworkHeight)
	}
	return nil
}
