// Package dataset prepares paired training examples for speech synthesis:
// vocoder (waveform, mel) pairs, acoustic-model feature tuples and
// masked-symbol pretraining sequences, each with a collator that assembles
// padded batch tensors.
package dataset

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Per-utterance artifacts live under fixed subdirectory names, one file per
// utterance index.
const (
	wavDirName      = "wav"
	melDirName      = "mel"
	durationDirName = "duration"
	f0DirName       = "f0"
	energyDirName   = "energy"
	frameF0DirName  = "frame_f0"
	frameUVDirName  = "frame_uv"
)

// VocoderRecord addresses the artifacts of one vocoder training utterance.
type VocoderRecord struct {
	Index       string
	WavFile     string
	MelFile     string
	FrameF0File string
	FrameUVFile string
}

// AcousticRecord addresses the artifacts of one acoustic-model utterance.
// DurationFile is empty when the corpus carries no explicit durations.
type AcousticRecord struct {
	Index        string
	Transcript   string
	MelFile      string
	DurationFile string
	F0File       string
	EnergyFile   string
	FrameF0File  string
	FrameUVFile  string
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open metafile %s: %w", path, err)
	}
	defer f.Close()

	var lines []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read metafile %s: %w", path, err)
	}

	return lines, nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("dataset: data directory not found: %s", path)
	}

	if !info.IsDir() {
		return fmt.Errorf("dataset: %s is not a directory", path)
	}

	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadVocoderMeta(metafile, dataDir string) ([]VocoderRecord, error) {
	lines, err := readLines(metafile)
	if err != nil {
		return nil, err
	}

	wavDir := filepath.Join(dataDir, wavDirName)
	melDir := filepath.Join(dataDir, melDirName)
	frameF0Dir := filepath.Join(dataDir, frameF0DirName)
	frameUVDir := filepath.Join(dataDir, frameUVDirName)

	if !dirExists(wavDir) || !dirExists(melDir) {
		return nil, fmt.Errorf("dataset: wav or mel directory not found under %s", dataDir)
	}

	slog.Info("loading vocoder metafile", "path", metafile, "entries", len(lines))

	records := make([]VocoderRecord, 0, len(lines))
	for _, index := range lines {
		records = append(records, VocoderRecord{
			Index:       index,
			WavFile:     filepath.Join(wavDir, index+".wav"),
			MelFile:     filepath.Join(melDir, index+".npy"),
			FrameF0File: filepath.Join(frameF0Dir, index+".npy"),
			FrameUVFile: filepath.Join(frameUVDir, index+".npy"),
		})
	}

	return records, nil
}

// scanVocoderDir pairs wav/*.wav with existing mel files when no manifest is
// available.
func scanVocoderDir(dataDir string) ([]VocoderRecord, error) {
	wavDir := filepath.Join(dataDir, wavDirName)
	melDir := filepath.Join(dataDir, melDirName)

	if !dirExists(wavDir) || !dirExists(melDir) {
		return nil, fmt.Errorf("dataset: wav or mel directory not found under %s", dataDir)
	}

	wavFiles, err := filepath.Glob(filepath.Join(wavDir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("dataset: scan %s: %w", wavDir, err)
	}

	var records []VocoderRecord

	for _, wavFile := range wavFiles {
		index := strings.TrimSuffix(filepath.Base(wavFile), ".wav")

		melFile := filepath.Join(melDir, index+".npy")
		if !fileExists(melFile) {
			continue
		}

		records = append(records, VocoderRecord{
			Index:       index,
			WavFile:     wavFile,
			MelFile:     melFile,
			FrameF0File: filepath.Join(dataDir, frameF0DirName, index+".npy"),
			FrameUVFile: filepath.Join(dataDir, frameUVDirName, index+".npy"),
		})
	}

	return records, nil
}

func loadAcousticMeta(metafile, dataDir string, withDuration bool) ([]AcousticRecord, error) {
	lines, err := readLines(metafile)
	if err != nil {
		return nil, err
	}

	melDir := filepath.Join(dataDir, melDirName)
	durDir := filepath.Join(dataDir, durationDirName)
	f0Dir := filepath.Join(dataDir, f0DirName)
	energyDir := filepath.Join(dataDir, energyDirName)
	frameF0Dir := filepath.Join(dataDir, frameF0DirName)
	frameUVDir := filepath.Join(dataDir, frameUVDirName)

	slog.Info("loading acoustic metafile", "path", metafile, "entries", len(lines))

	records := make([]AcousticRecord, 0, len(lines))

	for _, line := range lines {
		index, transcript, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("dataset: malformed metafile line %q in %s: want index<TAB>transcript", line, metafile)
		}

		rec := AcousticRecord{
			Index:       index,
			Transcript:  transcript,
			MelFile:     filepath.Join(melDir, index+".npy"),
			F0File:      filepath.Join(f0Dir, index+".npy"),
			EnergyFile:  filepath.Join(energyDir, index+".npy"),
			FrameF0File: filepath.Join(frameF0Dir, index+".npy"),
			FrameUVFile: filepath.Join(frameUVDir, index+".npy"),
		}

		if withDuration {
			rec.DurationFile = filepath.Join(durDir, index+".npy")
		}

		records = append(records, rec)
	}

	return records, nil
}

func loadMaskedTextMeta(metafile string) ([]string, error) {
	lines, err := readLines(metafile)
	if err != nil {
		return nil, err
	}

	slog.Info("loading masked-text metafile", "path", metafile, "entries", len(lines))

	transcripts := make([]string, 0, len(lines))

	for _, line := range lines {
		_, transcript, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("dataset: malformed metafile line %q in %s: want index<TAB>transcript", line, metafile)
		}

		transcripts = append(transcripts, transcript)
	}

	return transcripts, nil
}
