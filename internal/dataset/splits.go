package dataset

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// Split list filenames written next to the per-utterance artifact directories.
const (
	VocoderTrainList    = "train.lst"
	VocoderValidList    = "valid.lst"
	AcousticTrainList   = "am_train.lst"
	AcousticValidList   = "am_valid.lst"
	MaskedTextTrainList = "bert_train.lst"
	MaskedTextValidList = "bert_valid.lst"
)

// splitPoint mirrors the corpus convention: floor(N*ratio) - 1 entries go to
// the train list, the remainder to the valid list.
func splitPoint(n int, ratio float64) int {
	numTrain := int(float64(n)*ratio) - 1
	if numTrain < 0 {
		numTrain = 0
	}

	if numTrain > n {
		numTrain = n
	}

	return numTrain
}

func writeList(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create split list %s: %w", path, err)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			f.Close()
			return fmt.Errorf("dataset: write split list %s: %w", path, err)
		}
	}

	return f.Close()
}

// GenVocoderSplit shuffles the wav inventory of dataDir and writes train.lst
// and valid.lst, dropping utterances whose mel or frame-level f0/uv artifacts
// are missing.
func GenVocoderSplit(rng *rand.Rand, dataDir string, ratio float64) error {
	wavDir := filepath.Join(dataDir, wavDirName)
	if err := requireDir(wavDir); err != nil {
		return err
	}

	wavFiles, err := filepath.Glob(filepath.Join(wavDir, "*.wav"))
	if err != nil {
		return fmt.Errorf("dataset: scan %s: %w", wavDir, err)
	}

	rng.Shuffle(len(wavFiles), func(i, j int) {
		wavFiles[i], wavFiles[j] = wavFiles[j], wavFiles[i]
	})

	keep := func(index string) bool {
		return fileExists(filepath.Join(dataDir, frameF0DirName, index+".npy")) &&
			fileExists(filepath.Join(dataDir, frameUVDirName, index+".npy")) &&
			fileExists(filepath.Join(dataDir, melDirName, index+".npy"))
	}

	numTrain := splitPoint(len(wavFiles), ratio)

	var train, valid []string

	for i, wavFile := range wavFiles {
		index := strings.TrimSuffix(filepath.Base(wavFile), ".wav")
		if !keep(index) {
			continue
		}

		if i < numTrain {
			train = append(train, index)
		} else {
			valid = append(valid, index)
		}
	}

	if err := writeList(filepath.Join(dataDir, VocoderTrainList), train); err != nil {
		return err
	}

	return writeList(filepath.Join(dataDir, VocoderValidList), valid)
}

// GenAcousticSplit shuffles the lines of rawMetafile and writes am_train.lst
// and am_valid.lst into dataDir, dropping utterances that appear in badlist or
// whose mel, duration or frame-level f0/uv artifacts are missing.
func GenAcousticSplit(rng *rand.Rand, rawMetafile, dataDir string, badlist map[string]struct{}, ratio float64) error {
	lines, err := readLines(rawMetafile)
	if err != nil {
		return err
	}

	rng.Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})

	keep := func(index string) bool {
		if _, bad := badlist[index]; bad {
			return false
		}

		return fileExists(filepath.Join(dataDir, frameF0DirName, index+".npy")) &&
			fileExists(filepath.Join(dataDir, frameUVDirName, index+".npy")) &&
			fileExists(filepath.Join(dataDir, durationDirName, index+".npy")) &&
			fileExists(filepath.Join(dataDir, melDirName, index+".npy"))
	}

	numTrain := splitPoint(len(lines), ratio)

	var train, valid []string

	for i, line := range lines {
		index, _, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("dataset: malformed metafile line %q in %s: want index<TAB>transcript", line, rawMetafile)
		}

		if !keep(index) {
			continue
		}

		if i < numTrain {
			train = append(train, line)
		} else {
			valid = append(valid, line)
		}
	}

	if err := writeList(filepath.Join(dataDir, AcousticTrainList), train); err != nil {
		return err
	}

	return writeList(filepath.Join(dataDir, AcousticValidList), valid)
}

// GenMaskedTextSplit shuffles the lines of rawMetafile and writes
// bert_train.lst and bert_valid.lst into dataDir. The pretraining task needs
// no per-utterance artifacts, so no filtering applies.
func GenMaskedTextSplit(rng *rand.Rand, rawMetafile, dataDir string, ratio float64) error {
	lines, err := readLines(rawMetafile)
	if err != nil {
		return err
	}

	rng.Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})

	numTrain := splitPoint(len(lines), ratio)

	if err := writeList(filepath.Join(dataDir, MaskedTextTrainList), lines[:numTrain]); err != nil {
		return err
	}

	return writeList(filepath.Join(dataDir, MaskedTextValidList), lines[numTrain:])
}

// LoadBadlist reads a file of utterance indices (one per line) to exclude from
// acoustic splits. A missing path yields an empty set only when path is "".
func LoadBadlist(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		out[line] = struct{}{}
	}

	return out, nil
}
