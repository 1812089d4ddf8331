//nolint:wrapcheck
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/farcloser/primordium/format"

	"github.com/farcloser/mixprep"
)

func outputResult(result *mixprep.Result, formatName string) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	data := &format.Data{
		Object: result.RequestID,
		Meta:   resultToMap(result),
	}

	return formatter.PrintAll([]*format.Data{data}, os.Stdout)
}

// resultToMap converts a terminal result into the map structure shared by
// the console, json and markdown formatters. Nil analysis fields render as
// "n/a" rather than being omitted, so a track with no detectable tempo is
// visibly different from one that was never analyzed.
func resultToMap(result *mixprep.Result) map[string]any {
	meta := map[string]any{
		"bpm":             "n/a",
		"key":             "n/a",
		"key_camelot":     "n/a",
		"lufs_integrated": lufsString(result.LUFSIntegrated),
		"lufs_peak":       fmt.Sprintf("%.4f", result.LUFSPeak),
		"dynamic_range":   fmt.Sprintf("%.1f LU", result.DynamicRange),
	}

	if result.BPM != nil {
		meta["bpm"] = fmt.Sprintf("%.1f", *result.BPM)
	}

	if result.Key != nil {
		meta["key"] = *result.Key
	}

	if result.Camelot != nil {
		meta["key_camelot"] = *result.Camelot
	}

	if result.Duration != nil {
		meta["duration"] = fmt.Sprintf("%.2fs", *result.Duration)
	}

	if result.SampleRate != nil {
		meta["sample_rate"] = fmt.Sprintf("%d Hz", *result.SampleRate)
	}

	return meta
}

func lufsString(lufs float64) string {
	if math.IsInf(lufs, -1) {
		return "-inf"
	}

	return fmt.Sprintf("%.1f LUFS", lufs)
}
