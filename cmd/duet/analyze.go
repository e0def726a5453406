/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the duet project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"duet/internal/backend"
	"duet/pkg/audioengine"
	"duet/pkg/playback"
	"duet/pkg/spec"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Show per-band energy and the gate each channel would apply",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	near, err := cfg.Near.Channel()
	if err != nil {
		return fmt.Errorf("near: %w", err)
	}
	far, err := cfg.Far.Channel()
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}

	pcm, err := backend.DecodeFile(args[0], spec.SampleRate, cfg.Audio.Passphrase)
	if err != nil {
		return err
	}
	energies := audioengine.BandEnergies(audioengine.MonoMix(pcm), spec.SampleRate, audioengine.EQFreqs)
	return printAnalysis(cmd.OutOrStdout(), energies, near, far)
}

func printAnalysis(w io.Writer, energies []float64, near, far playback.ChannelConfig) error {
	gateFloor, _ := audioengine.NewEQBank(spec.SampleRate, audioengine.EQFreqs).LevelRange()
	nearLevels := audioengine.GateLevels(audioengine.EQFreqs, gateFloor, near.CutoffHz, near.Kind)
	farLevels := audioengine.GateLevels(audioengine.EQFreqs, gateFloor, far.CutoffHz, far.Kind)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "BAND HZ\tENERGY DB\tNEAR %s %d\tFAR %s %d\t\n", near.Kind, near.CutoffHz, far.Kind, far.CutoffHz)
	for i, hz := range audioengine.EQFreqs {
		fmt.Fprintf(tw, "%.0f\t%.1f\t%.0f\t%.0f\t\n", hz, audioengine.ToDecibels(energies[i]), nearLevels[i], farLevels[i])
	}
	return tw.Flush()
}
