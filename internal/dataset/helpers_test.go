package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/example/go-tts-dataprep/internal/audio"
	"github.com/example/go-tts-dataprep/internal/config"
)

// stubLing encodes a transcript of space-separated integer symbol ids and
// appends a 0 terminator to every stream.
type stubLing struct{}

func (stubLing) EncodeSymbolSequence(text string) (*LinguisticFeatures, error) {
	tokens := strings.Fields(text)
	n := len(tokens) + 1

	f := &LinguisticFeatures{
		Symbols:       make([]int64, n),
		Tones:         make([]int64, n),
		SyllableFlags: make([]int64, n),
		WordSegments:  make([]int64, n),
		Emotions:      make([]int64, n),
		Speakers:      make([]int64, n),
	}

	for i, tok := range tokens {
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad symbol token %q: %w", tok, err)
		}

		f.Symbols[i] = id
		f.Tones[i] = 1
		f.SyllableFlags[i] = 2
		f.WordSegments[i] = 3
	}

	return f, nil
}

func (stubLing) PadID(Stream) int64   { return 0 }
func (stubLing) SymbolVocabSize() int { return 500 }
func (stubLing) MaskSymbolID() int64  { return 499 }

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()

	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeNpyFixture(t *testing.T, path string, v any) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if err := npyio.Write(f, v); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeMelFixture writes a frames x channels matrix whose entries encode
// their own position, so crops can be checked against absolute frame numbers.
func writeMelFixture(t *testing.T, path string, frames, channels int) {
	t.Helper()

	data := make([]float64, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			data[f*channels+c] = float64(f*1000 + c)
		}
	}

	writeNpyFixture(t, path, mat.NewDense(frames, channels, data))
}

// writeEmptyMelFixture writes a valid NPY file with shape (0, channels),
// which mat.NewDense cannot represent.
func writeEmptyMelFixture(t *testing.T, path string, channels int) {
	t.Helper()

	hdr := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (0, %d), }", channels)

	pad := 64 - (10+len(hdr)+1)%64
	if pad == 64 {
		pad = 0
	}
	hdr += strings.Repeat(" ", pad) + "\n"

	buf := []byte("\x93NUMPY\x01\x00")
	buf = append(buf, byte(len(hdr)), byte(len(hdr)>>8))
	buf = append(buf, hdr...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeWavFixture(t *testing.T, path string, samples, rate int) {
	t.Helper()

	pcm := make([]float32, samples)
	for i := range pcm {
		pcm[i] = float32(i%100) / 200
	}

	if err := audio.WriteWAVFile(path, pcm, rate); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
}

// testConfig returns small analysis settings so fixtures stay tiny:
// hop 10, FFT window 16, 100-sample vocoder crops (10 frames).
func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Audio.SamplingRate = 8000
	cfg.Audio.NFFT = 16
	cfg.Audio.HopLength = 10
	cfg.Vocoder.BatchMaxSteps = 100

	return cfg
}
