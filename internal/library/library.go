// Package library turns files, directories and playlist files into tracks.
package library

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"duet/internal/backend"
	"duet/internal/container"
	"duet/pkg/playback"
)

const unknownArtist = "<unknown>"

// Scanner builds playlists. Unreadable entries are skipped and logged.
type Scanner struct {
	log *zap.Logger
}

func NewScanner(log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{log: log}
}

// Scan expands every path and returns the tracks sorted by title. A path
// may be an audio file, a directory (walked recursively) or a playlist
// file with one path per line.
func (s *Scanner) Scan(paths ...string) ([]playback.Track, error) {
	var files []string
	for _, p := range paths {
		found, err := s.expand(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	seen := make(map[string]bool, len(files))
	var tracks []playback.Track
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		t, err := Describe(f)
		if err != nil {
			s.log.Warn("skipping unreadable track", zap.String("path", f), zap.Error(err))
			continue
		}
		tracks = append(tracks, t)
	}

	sort.SliceStable(tracks, func(i, j int) bool {
		return strings.ToLower(tracks[i].Title) < strings.ToLower(tracks[j].Title)
	})
	s.log.Info("library scanned", zap.Int("tracks", len(tracks)))
	return tracks, nil
}

func (s *Scanner) expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		var out []string
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && backend.Supported(p) {
				out = append(out, p)
			}
			return nil
		})
		return out, err
	}
	if IsPlaylist(path) {
		return ReadPlaylist(path)
	}
	if !backend.Supported(path) {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnsupported, path)
	}
	return []string{path}, nil
}

// IsPlaylist reports whether path names a playlist file.
func IsPlaylist(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8", ".txt":
		return true
	}
	return false
}

// ReadPlaylist reads one path per line. Blank lines and '#' comments are
// ignored; relative paths resolve against the playlist's directory.
func ReadPlaylist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// AppendPlaylist adds a path to a playlist file unless it is already listed.
func AppendPlaylist(playlist, path string) error {
	existing, err := ReadPlaylist(playlist)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, p := range existing {
		if p == path {
			return fmt.Errorf("%s already listed", path)
		}
	}
	f, err := os.OpenFile(playlist, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, path); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Describe reads the metadata of a single audio file.
func Describe(path string) (playback.Track, error) {
	t := playback.Track{ID: path, Title: TitleFromPath(path), Artist: unknownArtist}

	f, err := os.Open(path)
	if err != nil {
		return t, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".duet":
		tf, err := container.Unpack(f)
		if err != nil {
			return t, err
		}
		if tf.Title != "" {
			t.Title = tf.Title
		}
		if tf.Artist != "" {
			t.Artist = tf.Artist
		}
		t.DurationMs = tf.DurationMs
		if len(tf.Artwork) > 0 {
			t.Art = path + "#artwork"
		}
	case ".wav":
		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			return t, fmt.Errorf("not a valid wav file")
		}
		d, err := dec.Duration()
		if err != nil {
			return t, err
		}
		t.DurationMs = int(d / time.Millisecond)
	default:
		return t, fmt.Errorf("%w: %s", backend.ErrUnsupported, path)
	}
	return t, nil
}

// TitleFromPath derives a readable title from a file name.
func TitleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return filepath.Base(path)
	}
	return name
}
