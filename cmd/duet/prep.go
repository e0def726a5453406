/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the duet project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"duet/internal/codec"
	"duet/internal/container"
	"duet/internal/library"
	"duet/internal/security"
	"duet/pkg/audioengine"
)

var (
	prepDest    string
	prepTitle   string
	prepArtist  string
	prepArtwork string
	prepEncrypt bool
	prepAsk     bool
	prepWorkers int
)

var prepCmd = &cobra.Command{
	Use:   "prep <input.wav|dir>...",
	Short: "Encode WAV files into .duet track files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrep,
}

func init() {
	f := prepCmd.Flags()
	f.StringVarP(&prepDest, "dest", "d", ".", "destination folder (must exist)")
	f.StringVarP(&prepTitle, "title", "t", "", "track title (single input only; default from file name)")
	f.StringVar(&prepArtist, "artist", "", "artist")
	f.StringVar(&prepArtwork, "artwork", "", "cover image (jpeg or png)")
	f.BoolVarP(&prepEncrypt, "encrypt", "e", false, "encrypt audio frames with the configured passphrase")
	f.BoolVarP(&prepAsk, "ask", "i", false, "ask for missing metadata interactively")
	f.IntVarP(&prepWorkers, "workers", "w", runtime.NumCPU(), "parallel encoders")
}

func runPrep(cmd *cobra.Command, args []string) error {
	inputs, err := findWavs(args)
	if err != nil {
		return err
	}
	passphrase := cfg.Audio.Passphrase

	if prepAsk || (prepEncrypt && passphrase == "") {
		rl, err := readline.NewEx(&readline.Config{Prompt: ">> "})
		if err != nil {
			return err
		}
		if prepAsk {
			if len(inputs) == 1 {
				prepTitle = ask(rl, "Title", library.TitleFromPath(inputs[0]))
			}
			prepArtist = ask(rl, "Artist", prepArtist)
			prepArtwork = ask(rl, "Artwork path", prepArtwork)
		}
		if prepEncrypt && passphrase == "" {
			pw, err := rl.ReadPassword("Passphrase: ")
			if err != nil {
				rl.Close()
				return err
			}
			passphrase = string(pw)
		}
		rl.Close()
	}
	if prepEncrypt && passphrase == "" {
		return security.ErrNoPassphrase
	}
	if prepTitle != "" && len(inputs) > 1 {
		return errors.New("--title needs exactly one input")
	}

	var artwork []byte
	if prepArtwork != "" {
		f, err := os.Open(prepArtwork)
		if err != nil {
			return fmt.Errorf("artwork: %w", err)
		}
		artwork, err = codec.ProcessArtwork(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("artwork: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	progress := NewProgress(out, "PREP", len(inputs))
	jobs := make(chan prepJob, len(inputs))
	errs := make(chan error, len(inputs))
	var wg sync.WaitGroup

	for w := 0; w < max(1, prepWorkers); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := prepTrack(j.in, j.dest, j.meta, passphrase, prepEncrypt); err != nil {
					errs <- fmt.Errorf("%s: %w", j.in, err)
				}
				progress.Add(1)
			}
		}()
	}

	for _, in := range inputs {
		meta := container.Meta{Title: prepTitle, Artist: prepArtist, Artwork: artwork}
		if meta.Title == "" {
			meta.Title = library.TitleFromPath(in)
		}
		dest := filepath.Join(prepDest, strings.ReplaceAll(meta.Title, " ", "_")+".duet")
		jobs <- prepJob{in: in, dest: dest, meta: meta}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	var failed []error
	for err := range errs {
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	fmt.Fprintf(out, "[SUCCESS] %d track(s) written to %s\n", len(inputs), prepDest)
	return nil
}

type prepJob struct {
	in, dest string
	meta     container.Meta
}

// findWavs expands directories into the WAV files below them, sorted.
func findWavs(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		var found []string
		err = filepath.WalkDir(a, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".wav") {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, errors.New("no WAV files found")
	}
	return out, nil
}

// prepTrack encodes one WAV file to opus frames and packs them into dest.
func prepTrack(in, dest string, meta container.Meta, passphrase string, encrypt bool) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	var fc *security.FrameCipher
	if encrypt {
		if meta.Salt, err = security.NewSalt(); err != nil {
			return err
		}
		if fc, err = security.NewFrameCipher(security.DeriveKey(passphrase, meta.Salt)); err != nil {
			return err
		}
		meta.Encrypted = true
	}

	resChan := make(chan audioengine.EncoderResult, 100)
	var (
		frames   [][]byte
		frameErr error
		writeWg  sync.WaitGroup
	)
	writeWg.Add(1)
	go func() {
		defer writeWg.Done()
		for res := range resChan {
			if res.Error != nil {
				if frameErr == nil {
					frameErr = res.Error
				}
				continue
			}
			frame := res.Frame
			if fc != nil {
				enc, err := fc.Encrypt(frame)
				if err != nil {
					if frameErr == nil {
						frameErr = err
					}
					continue
				}
				frame = enc
			}
			frames = append(frames, frame)
		}
	}()

	secs, err := audioengine.StreamEncodeWavToOpus(src, resChan)
	close(resChan)
	writeWg.Wait()
	if err != nil {
		return err
	}
	if frameErr != nil {
		return frameErr
	}
	meta.DurationMs = int(secs * 1000)

	var buf bytes.Buffer
	if err := container.Pack(&buf, meta, frames); err != nil {
		return err
	}
	return os.WriteFile(dest, buf.Bytes(), 0o644)
}

func ask(rl *readline.Instance, prompt, def string) string {
	rl.SetPrompt(fmt.Sprintf("%s [%s]: ", prompt, def))
	line, _ := rl.Readline()
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
