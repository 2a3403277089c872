package dataset

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
)

type acousticUtt struct {
	index      string
	transcript string
	durations  []int64
	frames     int
}

// newAcousticRoot lays out mel/, f0/, energy/ and frame-level fixtures for the
// given utterances; duration/ is written only when withDuration is set. Pitch
// and energy are phoneme-level with durations and frame-level without, as the
// two alignment regimes require.
func newAcousticRoot(t *testing.T, utts []acousticUtt, channels int, withDuration bool) (root, metafile string) {
	t.Helper()

	root = t.TempDir()
	mkdirs(t, root, melDirName, f0DirName, energyDirName, frameF0DirName, frameUVDirName)
	if withDuration {
		mkdirs(t, root, durationDirName)
	}

	var lines []string

	for _, utt := range utts {
		writeMelFixture(t, filepath.Join(root, melDirName, utt.index+".npy"), utt.frames, channels)
		writeNpyFixture(t, filepath.Join(root, frameF0DirName, utt.index+".npy"), make([]float32, utt.frames))
		writeNpyFixture(t, filepath.Join(root, frameUVDirName, utt.index+".npy"), make([]float32, utt.frames))

		prosodyLen := len(utt.durations)
		if !withDuration {
			prosodyLen = utt.frames
		}

		writeNpyFixture(t, filepath.Join(root, f0DirName, utt.index+".npy"), make([]float32, prosodyLen))
		writeNpyFixture(t, filepath.Join(root, energyDirName, utt.index+".npy"), make([]float32, prosodyLen))

		if withDuration {
			writeNpyFixture(t, filepath.Join(root, durationDirName, utt.index+".npy"), utt.durations)
		}

		lines = append(lines, utt.index+"\t"+utt.transcript)
	}

	metafile = filepath.Join(root, AcousticTrainList)
	writeFile(t, metafile, strings.Join(lines, "\n")+"\n")

	return root, metafile
}

func testAcousticUtts() []acousticUtt {
	return []acousticUtt{
		{index: "u0", transcript: "10 11 12 13", durations: []int64{5, 5, 5, 5}, frames: 20},
		{index: "u1", transcript: "20 21 22 23 24 25", durations: []int64{5, 5, 5, 5, 4, 4}, frames: 28},
		{index: "u2", transcript: "30 31", durations: []int64{6, 6}, frames: 12},
	}
}

func TestAcousticCollate_WithDurations(t *testing.T) {
	cfg := testConfig()
	cfg.Acoustic.OutputsPerStep = 2

	root, metafile := newAcousticRoot(t, testAcousticUtts(), 2, true)

	d, err := NewAcousticDataset([]string{metafile}, []string{root}, stubLing{}, cfg)
	if err != nil {
		t.Fatalf("NewAcousticDataset error: %v", err)
	}

	if !d.WithDuration() {
		t.Fatal("duration directory present but WithDuration is false")
	}

	batch := make([]*AcousticExample, d.Len())
	for i := range batch {
		batch[i], err = d.Example(i)
		if err != nil {
			t.Fatalf("Example %d error: %v", i, err)
		}
	}

	collated, err := d.Collate(batch)
	if err != nil {
		t.Fatalf("Collate error: %v", err)
	}

	if got := collated.InputLings.Shape(); got[0] != 3 || got[1] != 7 || got[2] != 4 {
		t.Fatalf("InputLings shape = %v; want [3 7 4]", got)
	}

	// The longest mel (28) is already a multiple of outputs-per-step 2.
	if got := collated.MelTargets.Shape(); got[0] != 3 || got[1] != 28 || got[2] != 2 {
		t.Fatalf("MelTargets shape = %v; want [3 28 2]", got)
	}

	wantValidIn := []int64{4, 6, 2}
	for i, want := range wantValidIn {
		got, err := collated.ValidInputLengths.At(int64(i))
		if err != nil {
			t.Fatalf("At error: %v", err)
		}
		if got != want {
			t.Fatalf("ValidInputLengths[%d] = %d; want %d", i, got, want)
		}
	}

	wantValidOut := []int64{20, 28, 12}
	for i, want := range wantValidOut {
		got, err := collated.ValidOutputLengths.At(int64(i))
		if err != nil {
			t.Fatalf("At error: %v", err)
		}
		if got != want {
			t.Fatalf("ValidOutputLengths[%d] = %d; want %d", i, got, want)
		}
	}

	if collated.AttnPriors != nil {
		t.Fatal("AttnPriors set alongside explicit durations")
	}

	if collated.Durations == nil {
		t.Fatal("Durations missing despite duration corpus")
	}

	if got := collated.Durations.Shape(); got[0] != 3 || got[1] != 7 {
		t.Fatalf("Durations shape = %v; want [3 7]", got)
	}

	// Padded duration rows account for every mel frame in the budget.
	for row := 0; row < 3; row++ {
		var sum int64
		for col := 0; col < 7; col++ {
			v, err := collated.Durations.At(int64(row), int64(col))
			if err != nil {
				t.Fatalf("At error: %v", err)
			}
			sum += v
		}

		if sum != 28 {
			t.Fatalf("duration row %d sums to %d; want 28", row, sum)
		}
	}

	// With durations, prosody contours are phoneme-level.
	if got := collated.PitchContours.Shape(); got[0] != 3 || got[1] != 7 {
		t.Fatalf("PitchContours shape = %v; want [3 7]", got)
	}

	// Symbol stream occupies slot 0, tone slot 1, and padding stays at the
	// pad id.
	sym, err := collated.InputLings.At(0, 0, 0)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if sym != 10 {
		t.Fatalf("InputLings(0,0,0) = %d; want 10", sym)
	}

	tone, err := collated.InputLings.At(0, 0, 1)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if tone != 1 {
		t.Fatalf("InputLings(0,0,1) = %d; want 1", tone)
	}

	pad, err := collated.InputLings.At(2, 5, 0)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if pad != 0 {
		t.Fatalf("padded InputLings(2,5,0) = %d; want pad id 0", pad)
	}
}

func TestAcousticCollate_WithPriors(t *testing.T) {
	cfg := testConfig()
	cfg.Acoustic.OutputsPerStep = 2

	root, metafile := newAcousticRoot(t, testAcousticUtts(), 2, false)

	d, err := NewAcousticDataset([]string{metafile}, []string{root}, stubLing{}, cfg)
	if err != nil {
		t.Fatalf("NewAcousticDataset error: %v", err)
	}

	if d.WithDuration() {
		t.Fatal("no duration directory but WithDuration is true")
	}

	batch := make([]*AcousticExample, d.Len())
	for i := range batch {
		batch[i], err = d.Example(i)
		if err != nil {
			t.Fatalf("Example %d error: %v", i, err)
		}
	}

	collated, err := d.Collate(batch)
	if err != nil {
		t.Fatalf("Collate error: %v", err)
	}

	if collated.Durations != nil {
		t.Fatal("Durations set in the prior regime")
	}

	if collated.AttnPriors == nil {
		t.Fatal("AttnPriors missing in the prior regime")
	}

	if got := collated.AttnPriors.Shape(); got[0] != 3 || got[1] != 28 || got[2] != 7 {
		t.Fatalf("AttnPriors shape = %v; want [3 28 7]", got)
	}

	// Example 0 has 5 symbols and 20 frames: inside its block every frame row
	// carries unit mass over its own 5 symbol positions.
	var sum float64
	for l := 0; l < 5; l++ {
		v, err := collated.AttnPriors.At(0, 0, int64(l))
		if err != nil {
			t.Fatalf("At error: %v", err)
		}
		sum += float64(v)
	}

	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("prior row mass = %v; want 1", sum)
	}

	// Outside the block the tensor stays zero.
	v, err := collated.AttnPriors.At(0, 25, 0)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if v != 0 {
		t.Fatalf("prior at padded frame = %v; want 0", v)
	}

	v, err = collated.AttnPriors.At(0, 0, 6)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if v != 0 {
		t.Fatalf("prior at padded symbol = %v; want 0", v)
	}

	// Without durations, prosody contours are frame-level.
	if got := collated.PitchContours.Shape(); got[0] != 3 || got[1] != 28 {
		t.Fatalf("PitchContours shape = %v; want [3 28]", got)
	}
}

func TestAcousticExample_SharedPriorMatrix(t *testing.T) {
	cfg := testConfig()

	// Two utterances with identical (symbols, frames) shape share a memoized
	// prior matrix.
	utts := []acousticUtt{
		{index: "a", transcript: "1 2 3", frames: 12},
		{index: "b", transcript: "4 5 6", frames: 12},
	}

	root, metafile := newAcousticRoot(t, utts, 2, false)

	d, err := NewAcousticDataset([]string{metafile}, []string{root}, stubLing{}, cfg)
	if err != nil {
		t.Fatalf("NewAcousticDataset error: %v", err)
	}

	ex0, err := d.Example(0)
	if err != nil {
		t.Fatalf("Example error: %v", err)
	}

	ex1, err := d.Example(1)
	if err != nil {
		t.Fatalf("Example error: %v", err)
	}

	if &ex0.Prior[0][0] != &ex1.Prior[0][0] {
		t.Fatal("equal-shape priors were computed twice")
	}
}

func TestAcousticExample_Cache(t *testing.T) {
	cfg := testConfig()
	cfg.Acoustic.AllowCache = true

	root, metafile := newAcousticRoot(t, testAcousticUtts(), 2, true)

	d, err := NewAcousticDataset([]string{metafile}, []string{root}, stubLing{}, cfg)
	if err != nil {
		t.Fatalf("NewAcousticDataset error: %v", err)
	}

	ex1, err := d.Example(1)
	if err != nil {
		t.Fatalf("Example error: %v", err)
	}

	ex2, err := d.Example(1)
	if err != nil {
		t.Fatalf("Example error: %v", err)
	}

	if ex1 != ex2 {
		t.Fatal("cache enabled but repeated access decoded a fresh example")
	}
}

func TestNewAcousticDataset_RejectsMixedRegimes(t *testing.T) {
	cfg := testConfig()

	rootWith, metaWith := newAcousticRoot(t, testAcousticUtts()[:1], 2, true)
	rootWithout, metaWithout := newAcousticRoot(t, testAcousticUtts()[1:2], 2, false)

	_, err := NewAcousticDataset(
		[]string{metaWith, metaWithout},
		[]string{rootWith, rootWithout},
		stubLing{}, cfg,
	)
	if err == nil || !strings.Contains(err.Error(), "mix duration") {
		t.Fatalf("expected mixed-regime error, got: %v", err)
	}
}

func TestGetAcousticDatasets_GeneratesLists(t *testing.T) {
	cfg := testConfig()
	cfg.Acoustic.OutputsPerStep = 2

	root, _ := newAcousticRoot(t, testAcousticUtts(), 2, true)

	// The raw metafile lives outside the root; the generated am_*.lst files
	// land next to the artifact directories.
	var lines []string
	for _, utt := range testAcousticUtts() {
		lines = append(lines, utt.index+"\t"+utt.transcript)
	}

	rawMeta := filepath.Join(t.TempDir(), "raw.txt")
	writeFile(t, rawMeta, strings.Join(lines, "\n")+"\n")

	rng := rand.New(rand.NewPCG(21, 22))

	train, valid, err := GetAcousticDatasets(rng, []string{rawMeta}, []string{root}, stubLing{}, cfg)
	if err != nil {
		t.Fatalf("GetAcousticDatasets error: %v", err)
	}

	if !fileExists(filepath.Join(root, AcousticTrainList)) || !fileExists(filepath.Join(root, AcousticValidList)) {
		t.Fatal("split lists were not written")
	}

	if got := train.Len() + valid.Len(); got != 3 {
		t.Fatalf("train+valid = %d utterances; want 3", got)
	}
}
