package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/example/go-tts-dataprep/internal/config"
	"github.com/example/go-tts-dataprep/internal/npy"
	"github.com/example/go-tts-dataprep/internal/padding"
	"github.com/example/go-tts-dataprep/internal/prior"
	"github.com/example/go-tts-dataprep/internal/tensor"
)

// priorScale is the beta-binomial sharpness used for attention priors.
const priorScale = 1.0

// AcousticExample is one decoded acoustic-model tuple. Exactly one of
// Duration and Prior is set, depending on whether the corpus carries explicit
// phoneme durations.
type AcousticExample struct {
	Ling     *LinguisticFeatures
	Mel      [][]float32
	Duration []int64
	Pitch    []float32
	Energy   []float32
	Prior    [][]float32
}

// AcousticBatch holds the padded batch tensors for acoustic-model training.
// Durations is nil when the dataset runs without explicit durations; in that
// case AttnPriors is set instead, zero-padded outside each example's own
// (frames x symbols) block. Zero entries outside that block carry no
// probability mass and must not be read as probabilities.
type AcousticBatch struct {
	// InputLings has shape [B, L, 4]: symbol, tone, syllable flag and word
	// segment streams stacked along the trailing axis.
	InputLings *tensor.Int
	// InputEmotions and InputSpeakers have shape [B, L].
	InputEmotions *tensor.Int
	InputSpeakers *tensor.Int
	// ValidInputLengths has shape [B]. Each entry is the raw symbol length
	// minus one: the appended terminator must not count toward
	// duration-prediction length.
	ValidInputLengths *tensor.Int
	// ValidOutputLengths has shape [B].
	ValidOutputLengths *tensor.Int
	// MelTargets has shape [B, F, C] with F rounded up to outputs-per-step.
	MelTargets *tensor.Float
	// Durations has shape [B, L] or is nil.
	Durations *tensor.Int
	// PitchContours and EnergyContours have shape [B, L] with durations,
	// [B, F] without.
	PitchContours  *tensor.Float
	EnergyContours *tensor.Float
	// AttnPriors has shape [B, F, L] or is nil.
	AttnPriors *tensor.Float
}

// AcousticDataset serves linguistic/mel/prosody tuples for acoustic-model
// training.
type AcousticDataset struct {
	records []AcousticRecord
	ling    LinguisticUnit

	withDuration   bool
	nsfEnable      bool
	outputsPerStep int

	priors *prior.Cache
	cache  *slotCache[AcousticExample]
}

// NewAcousticDataset builds a dataset from parallel lists of split files and
// data roots. Explicit durations are used when every root carries a duration
// directory; mixing rooted-with and rooted-without duration corpora is
// rejected so a single batch never mixes alignment regimes.
func NewAcousticDataset(metafiles, rootDirs []string, ling LinguisticUnit, cfg config.Config) (*AcousticDataset, error) {
	if len(metafiles) != len(rootDirs) {
		return nil, fmt.Errorf("dataset: %d metafiles but %d root dirs", len(metafiles), len(rootDirs))
	}

	if len(rootDirs) == 0 {
		return nil, errors.New("dataset: no data roots")
	}

	if ling == nil {
		return nil, errors.New("dataset: nil linguistic unit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	withDuration := dirExists(filepath.Join(rootDirs[0], durationDirName))
	for _, root := range rootDirs[1:] {
		if dirExists(filepath.Join(root, durationDirName)) != withDuration {
			return nil, fmt.Errorf("dataset: data roots mix duration and duration-free corpora")
		}
	}

	d := &AcousticDataset{
		ling:           ling,
		withDuration:   withDuration,
		nsfEnable:      cfg.Acoustic.NSFEnable,
		outputsPerStep: cfg.Acoustic.OutputsPerStep,
	}

	for i, metafile := range metafiles {
		if !fileExists(metafile) {
			return nil, fmt.Errorf("dataset: meta file not found: %s", metafile)
		}

		if err := requireDir(rootDirs[i]); err != nil {
			return nil, err
		}

		records, err := loadAcousticMeta(metafile, rootDirs[i], withDuration)
		if err != nil {
			return nil, err
		}

		d.records = append(d.records, records...)
	}

	if !withDuration {
		priors, err := prior.NewCache(prior.DefaultCacheSize)
		if err != nil {
			return nil, err
		}

		d.priors = priors
	}

	if cfg.Acoustic.AllowCache {
		d.cache = newSlotCache[AcousticExample](len(d.records))
	}

	return d, nil
}

// Len returns the number of utterances.
func (d *AcousticDataset) Len() int {
	return len(d.records)
}

// WithDuration reports whether examples carry explicit durations rather than
// attention priors.
func (d *AcousticDataset) WithDuration() bool {
	return d.withDuration
}

// Example decodes the idx-th tuple, serving it from the cache when enabled.
func (d *AcousticDataset) Example(idx int) (*AcousticExample, error) {
	if idx < 0 || idx >= len(d.records) {
		return nil, fmt.Errorf("dataset: index %d out of bounds [0, %d)", idx, len(d.records))
	}

	if cached, ok, err := d.cache.get(idx); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	rec := d.records[idx]

	lingData, err := d.ling.EncodeSymbolSequence(rec.Transcript)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: encode transcript: %w", rec.Index, err)
	}

	if err := lingData.Validate(); err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	melData, err := npy.Load2D(rec.MelFile)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	ex := &AcousticExample{Ling: lingData}

	if d.withDuration {
		ex.Duration, err = npy.Load1DInt(rec.DurationFile)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
		}
	} else {
		ex.Prior, err = d.priors.Get(lingData.Len(), len(melData), priorScale)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
		}
	}

	ex.Pitch, err = npy.Load1D(rec.F0File)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	ex.Energy, err = npy.Load1D(rec.EnergyFile)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	if d.nsfEnable {
		melData, err = appendExcitationChannels(melData, rec.FrameF0File, rec.FrameUVFile, rec.Index)
		if err != nil {
			return nil, err
		}
	}

	ex.Mel = melData

	if err := d.cache.put(idx, ex); err != nil {
		return nil, err
	}

	return ex, nil
}

// Collate pads every field to the batch's own maxima and stacks the result.
// The mel-frame budget is the batch's longest mel rounded up to
// outputs-per-step.
func (d *AcousticDataset) Collate(batch []*AcousticExample) (*AcousticBatch, error) {
	if len(batch) == 0 {
		return nil, errors.New("dataset: empty acoustic batch")
	}

	b := len(batch)

	maxInput := 0
	maxOutput := 0
	for _, ex := range batch {
		if n := ex.Ling.Len(); n > maxInput {
			maxInput = n
		}

		if n := len(ex.Mel); n > maxOutput {
			maxOutput = n
		}
	}

	maxOutputRound := padding.RoundUp(maxOutput, d.outputsPerStep)

	stackStream := func(s Stream) (*tensor.Int, error) {
		seqs := make([][]int64, b)
		for i, ex := range batch {
			seqs[i] = ex.Ling.Stream(s)
		}

		return padding.StackScalarInt(seqs, maxInput, d.ling.PadID(s))
	}

	var lingStreams []*tensor.Int
	for _, s := range []Stream{StreamSymbol, StreamTone, StreamSyllableFlag, StreamWordSegment} {
		t, err := stackStream(s)
		if err != nil {
			return nil, err
		}

		lingStreams = append(lingStreams, t)
	}

	inputLings, err := tensor.StackLast(lingStreams)
	if err != nil {
		return nil, err
	}

	inputEmotions, err := stackStream(StreamEmotion)
	if err != nil {
		return nil, err
	}

	inputSpeakers, err := stackStream(StreamSpeaker)
	if err != nil {
		return nil, err
	}

	validIn := make([]int64, b)
	validOut := make([]int64, b)
	for i, ex := range batch {
		validIn[i] = int64(ex.Ling.Len() - 1)
		validOut[i] = int64(len(ex.Mel))
	}

	validInputLengths, err := tensor.NewInt(validIn, []int64{int64(b)})
	if err != nil {
		return nil, err
	}

	validOutputLengths, err := tensor.NewInt(validOut, []int64{int64(b)})
	if err != nil {
		return nil, err
	}

	mels := make([][][]float32, b)
	for i, ex := range batch {
		mels[i] = ex.Mel
	}

	melTargets, err := padding.StackTargets(mels, maxOutputRound, 0)
	if err != nil {
		return nil, err
	}

	out := &AcousticBatch{
		InputLings:         inputLings,
		InputEmotions:      inputEmotions,
		InputSpeakers:      inputSpeakers,
		ValidInputLengths:  validInputLengths,
		ValidOutputLengths: validOutputLengths,
		MelTargets:         melTargets,
	}

	featsLen := maxInput
	if !d.withDuration {
		featsLen = maxOutputRound
	}

	pitches := make([][]float32, b)
	energies := make([][]float32, b)
	for i, ex := range batch {
		pitches[i] = ex.Pitch
		energies[i] = ex.Energy
	}

	out.PitchContours, err = padding.StackScalarFloat(pitches, featsLen, 0)
	if err != nil {
		return nil, err
	}

	out.EnergyContours, err = padding.StackScalarFloat(energies, featsLen, 0)
	if err != nil {
		return nil, err
	}

	if d.withDuration {
		durations := make([][]int64, b)
		for i, ex := range batch {
			durations[i] = ex.Duration
		}

		out.Durations, err = padding.StackDurations(durations, maxInput, maxOutputRound)
		if err != nil {
			return nil, err
		}

		return out, nil
	}

	// Zero-initialize the prior tensor and copy each example's matrix into
	// the top-left block.
	priorFlat := make([]float32, b*maxOutputRound*maxInput)
	for i, ex := range batch {
		if ex.Prior == nil {
			return nil, fmt.Errorf("dataset: example %d is missing its attention prior", i)
		}

		base := i * maxOutputRound * maxInput
		for f, row := range ex.Prior {
			copy(priorFlat[base+f*maxInput:base+f*maxInput+len(row)], row)
		}
	}

	out.AttnPriors, err = tensor.NewFloat(priorFlat, []int64{int64(b), int64(maxOutputRound), int64(maxInput)})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetAcousticDatasets generates missing am_train/am_valid split lists for
// every (raw metafile, data root) pair and returns the train and valid
// datasets.
func GetAcousticDatasets(rng *rand.Rand, rawMetafiles, rootDirs []string, ling LinguisticUnit, cfg config.Config) (train, valid *AcousticDataset, err error) {
	if len(rawMetafiles) != len(rootDirs) {
		return nil, nil, fmt.Errorf("dataset: %d raw metafiles but %d root dirs", len(rawMetafiles), len(rootDirs))
	}

	badlist, err := LoadBadlist(cfg.Paths.Badlist)
	if err != nil {
		return nil, nil, err
	}

	var trainMetas, validMetas []string

	for i, root := range rootDirs {
		trainMeta := filepath.Join(root, AcousticTrainList)
		validMeta := filepath.Join(root, AcousticValidList)

		if !fileExists(trainMeta) || !fileExists(validMeta) {
			if err := GenAcousticSplit(rng, rawMetafiles[i], root, badlist, cfg.Split.Ratio); err != nil {
				return nil, nil, err
			}
		}

		trainMetas = append(trainMetas, trainMeta)
		validMetas = append(validMetas, validMeta)
	}

	train, err = NewAcousticDataset(trainMetas, rootDirs, ling, cfg)
	if err != nil {
		return nil, nil, err
	}

	valid, err = NewAcousticDataset(validMetas, rootDirs, ling, cfg)
	if err != nil {
		return nil, nil, err
	}

	return train, valid, nil
}
