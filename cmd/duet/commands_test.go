package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"duet/internal/backend"
	"duet/internal/container"
	"duet/pkg/audioengine"
	"duet/pkg/playback"
)

func writeTone(t *testing.T, path string, hz float64, seconds float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	frames := int(48000 * seconds)
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		v := int(12000 * math.Sin(2*math.Pi*hz*float64(i)/48000))
		data[2*i], data[2*i+1] = v, v
	}
	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	if err := enc.Write(&audio.IntBuffer{Data: data, Format: &audio.Format{NumChannels: 2, SampleRate: 48000}, SourceBitDepth: 16}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPrepThenInfo(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tone.wav")
	writeTone(t, in, 440, 0.5)
	dest := filepath.Join(dir, "tone.duet")

	meta := container.Meta{Title: "Tone", Artist: "Lab"}
	if err := prepTrack(in, dest, meta, "pw", true); err != nil {
		t.Fatalf("prepTrack: %v", err)
	}

	info, art, err := readInfo(dest)
	if err != nil {
		t.Fatalf("readInfo: %v", err)
	}
	if info.Title != "Tone" || info.Artist != "Lab" || !info.Encrypted {
		t.Errorf("info = %+v", info)
	}
	if info.DurationMs < 490 || info.DurationMs > 510 {
		t.Errorf("DurationMs = %d, want about 500", info.DurationMs)
	}
	if info.Frames < 25 {
		t.Errorf("Frames = %d, want at least 25 for 500 ms of 20 ms frames", info.Frames)
	}
	if len(art) != 0 {
		t.Errorf("unexpected artwork of %d bytes", len(art))
	}

	var out bytes.Buffer
	if err := printInfo(&out, info, true); err != nil {
		t.Fatal(err)
	}
	var decoded trackInfo
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil || decoded != info {
		t.Errorf("JSON info = %+v (%v), want %+v", decoded, err, info)
	}

	if _, err := backend.DecodeFile(dest, 48000, "wrong"); err == nil {
		t.Errorf("DecodeFile with the wrong passphrase succeeded")
	}
	pcm, err := backend.DecodeFile(dest, 48000, "pw")
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(pcm) < 23000 {
		t.Errorf("decoded %d frames, want about 24000", len(pcm))
	}
}

func TestPrepRejectsNonWav(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.txt")
	os.WriteFile(in, []byte("not audio"), 0o644)
	if err := prepTrack(in, filepath.Join(dir, "out.duet"), container.Meta{}, "", false); err == nil {
		t.Errorf("prepTrack accepted a text file")
	}
}

func TestPrintAnalysis(t *testing.T) {
	energies := make([]float64, len(audioengine.EQFreqs))
	for i := range energies {
		energies[i] = 1
	}
	var out bytes.Buffer
	if err := printAnalysis(&out, energies, playback.DefaultNear(), playback.DefaultFar()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(audioengine.EQFreqs)+1 {
		t.Fatalf("got %d lines, want header plus one per band:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "highpass 50") || !strings.Contains(lines[0], "lowpass 15000") {
		t.Errorf("header = %q", lines[0])
	}
	// 16 kHz is above the far cutoff and gated to the floor
	last := strings.Fields(lines[len(lines)-1])
	if last[0] != "16000" || last[3] != "-15" {
		t.Errorf("16 kHz row = %v, want far level -15", last)
	}
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out, "PREP", 2)
	p.Add(1)
	p.Add(1)
	s := out.String()
	if !strings.Contains(s, "50% (1/2)") || !strings.Contains(s, "100% (2/2)") {
		t.Errorf("progress output = %q", s)
	}
	if !strings.HasSuffix(s, "\n") {
		t.Errorf("progress did not end the line when complete")
	}
}

func TestFindWavs(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "disc2"), 0o755)
	for _, name := range []string{"b.wav", "a.WAV", "cover.jpg", "disc2/c.wav"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	got, err := findWavs([]string{dir})
	if err != nil {
		t.Fatalf("findWavs: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.WAV"),
		filepath.Join(dir, "b.wav"),
		filepath.Join(dir, "disc2", "c.wav"),
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("findWavs = %v, want %v", got, want)
	}

	if _, err := findWavs([]string{filepath.Join(dir, "disc2", "missing.wav")}); err == nil {
		t.Errorf("findWavs accepted a missing file")
	}
	empty := t.TempDir()
	if _, err := findWavs([]string{empty}); err == nil {
		t.Errorf("findWavs accepted a directory without WAV files")
	}
}
