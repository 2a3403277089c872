package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/example/go-tts-dataprep/internal/config"
	"github.com/example/go-tts-dataprep/internal/masking"
	"github.com/example/go-tts-dataprep/internal/padding"
	"github.com/example/go-tts-dataprep/internal/tensor"
)

// MaskedTextExample pairs a clean linguistic tuple with a corrupted symbol
// stream and the 0/1 mask that selected the corrupted positions.
type MaskedTextExample struct {
	Ling          *LinguisticFeatures
	MaskedSymbols []int64
	Mask          []int64
}

// MaskedTextBatch holds the padded batch tensors for masked-symbol
// pretraining.
type MaskedTextBatch struct {
	// InputLings has shape [B, L, 4] with the corrupted symbol stream in
	// position 0 and clean tone/syllable/word-segment streams after it.
	InputLings *tensor.Int
	// Targets has shape [B, L]: the clean symbol stream.
	Targets *tensor.Int
	// Masks has shape [B, L]; 1 marks positions selected for corruption.
	Masks *tensor.Int
	// ValidInputLengths has shape [B]: raw symbol length minus the appended
	// terminator.
	ValidInputLengths *tensor.Int
}

// MaskedTextDataset serves corrupted symbol sequences for self-supervised
// pretraining. Masking is regenerated on every access; only the clean
// linguistic tuple is ever cached.
type MaskedTextDataset struct {
	transcripts []string
	ling        LinguisticUnit

	maskRatio  float64
	maskProb   float64
	randomProb float64

	cache *slotCache[LinguisticFeatures]
}

// NewMaskedTextDataset builds a dataset from parallel lists of split files
// and data roots.
func NewMaskedTextDataset(metafiles, rootDirs []string, ling LinguisticUnit, cfg config.Config) (*MaskedTextDataset, error) {
	if len(metafiles) != len(rootDirs) {
		return nil, fmt.Errorf("dataset: %d metafiles but %d root dirs", len(metafiles), len(rootDirs))
	}

	if ling == nil {
		return nil, errors.New("dataset: nil linguistic unit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &MaskedTextDataset{
		ling:       ling,
		maskRatio:  cfg.Masked.MaskRatio,
		maskProb:   cfg.Masked.MaskProb,
		randomProb: cfg.Masked.RandomProb,
	}

	for i, metafile := range metafiles {
		if !fileExists(metafile) {
			return nil, fmt.Errorf("dataset: meta file not found: %s", metafile)
		}

		if err := requireDir(rootDirs[i]); err != nil {
			return nil, err
		}

		transcripts, err := loadMaskedTextMeta(metafile)
		if err != nil {
			return nil, err
		}

		d.transcripts = append(d.transcripts, transcripts...)
	}

	if cfg.Masked.AllowCache {
		d.cache = newSlotCache[LinguisticFeatures](len(d.transcripts))
	}

	return d, nil
}

// Len returns the number of transcripts.
func (d *MaskedTextDataset) Len() int {
	return len(d.transcripts)
}

// Example returns the idx-th transcript with a freshly drawn mask and
// corruption. A cache hit only skips re-encoding the clean tuple; the mask is
// non-deterministic by design and never cached.
func (d *MaskedTextDataset) Example(rng *rand.Rand, idx int) (*MaskedTextExample, error) {
	if idx < 0 || idx >= len(d.transcripts) {
		return nil, fmt.Errorf("dataset: index %d out of bounds [0, %d)", idx, len(d.transcripts))
	}

	var lingData *LinguisticFeatures

	if cached, ok, err := d.cache.get(idx); err != nil {
		return nil, err
	} else if ok {
		lingData = cached
	} else {
		encoded, err := d.ling.EncodeSymbolSequence(d.transcripts[idx])
		if err != nil {
			return nil, fmt.Errorf("dataset: example %d: encode transcript: %w", idx, err)
		}

		if err := encoded.Validate(); err != nil {
			return nil, fmt.Errorf("dataset: example %d: %w", idx, err)
		}

		if err := d.cache.put(idx, encoded); err != nil {
			return nil, err
		}

		lingData = encoded
	}

	mask, masked, err := d.corrupt(rng, lingData)
	if err != nil {
		return nil, fmt.Errorf("dataset: example %d: %w", idx, err)
	}

	return &MaskedTextExample{Ling: lingData, MaskedSymbols: masked, Mask: mask}, nil
}

// corrupt draws a fresh position mask, forces the terminator position
// unmasked and applies the three-way corruption policy to the symbol stream.
func (d *MaskedTextDataset) corrupt(rng *rand.Rand, lingData *LinguisticFeatures) (mask, masked []int64, err error) {
	length := lingData.Len()

	mask = masking.RandomMask(rng, length, d.maskRatio)
	mask[length-1] = 0

	masked, err = masking.Apply(rng, lingData.Symbols, d.ling.SymbolVocabSize(), d.ling.MaskSymbolID(), mask, d.maskProb, d.randomProb)
	if err != nil {
		return nil, nil, err
	}

	return mask, masked, nil
}

// Collate pads every field to the batch's max symbol length and stacks the
// result.
func (d *MaskedTextDataset) Collate(batch []*MaskedTextExample) (*MaskedTextBatch, error) {
	if len(batch) == 0 {
		return nil, errors.New("dataset: empty masked-text batch")
	}

	b := len(batch)

	maxInput := 0
	for _, ex := range batch {
		if n := ex.Ling.Len(); n > maxInput {
			maxInput = n
		}
	}

	symbolPad := d.ling.PadID(StreamSymbol)

	cleanSymbols := make([][]int64, b)
	maskedSymbols := make([][]int64, b)
	masks := make([][]int64, b)
	for i, ex := range batch {
		cleanSymbols[i] = ex.Ling.Symbols
		maskedSymbols[i] = ex.MaskedSymbols
		masks[i] = ex.Mask
	}

	targets, err := padding.StackScalarInt(cleanSymbols, maxInput, symbolPad)
	if err != nil {
		return nil, err
	}

	inputsSy, err := padding.StackScalarInt(maskedSymbols, maxInput, symbolPad)
	if err != nil {
		return nil, err
	}

	lingStreams := []*tensor.Int{inputsSy}
	for _, s := range []Stream{StreamTone, StreamSyllableFlag, StreamWordSegment} {
		seqs := make([][]int64, b)
		for i, ex := range batch {
			seqs[i] = ex.Ling.Stream(s)
		}

		t, err := padding.StackScalarInt(seqs, maxInput, d.ling.PadID(s))
		if err != nil {
			return nil, err
		}

		lingStreams = append(lingStreams, t)
	}

	inputLings, err := tensor.StackLast(lingStreams)
	if err != nil {
		return nil, err
	}

	maskTensor, err := padding.StackScalarInt(masks, maxInput, 0)
	if err != nil {
		return nil, err
	}

	validIn := make([]int64, b)
	for i, ex := range batch {
		validIn[i] = int64(ex.Ling.Len() - 1)
	}

	validInputLengths, err := tensor.NewInt(validIn, []int64{int64(b)})
	if err != nil {
		return nil, err
	}

	return &MaskedTextBatch{
		InputLings:        inputLings,
		Targets:           targets,
		Masks:             maskTensor,
		ValidInputLengths: validInputLengths,
	}, nil
}

// GetMaskedTextDatasets generates missing bert_train/bert_valid split lists
// for every (raw metafile, data root) pair and returns the train and valid
// datasets.
func GetMaskedTextDatasets(rng *rand.Rand, rawMetafiles, rootDirs []string, ling LinguisticUnit, cfg config.Config) (train, valid *MaskedTextDataset, err error) {
	if len(rawMetafiles) != len(rootDirs) {
		return nil, nil, fmt.Errorf("dataset: %d raw metafiles but %d root dirs", len(rawMetafiles), len(rootDirs))
	}

	var trainMetas, validMetas []string

	for i, root := range rootDirs {
		trainMeta := filepath.Join(root, MaskedTextTrainList)
		validMeta := filepath.Join(root, MaskedTextValidList)

		if !fileExists(trainMeta) || !fileExists(validMeta) {
			if err := GenMaskedTextSplit(rng, rawMetafiles[i], root, cfg.Split.Ratio); err != nil {
				return nil, nil, err
			}
		}

		trainMetas = append(trainMetas, trainMeta)
		validMetas = append(validMetas, validMeta)
	}

	train, err = NewMaskedTextDataset(trainMetas, rootDirs, ling, cfg)
	if err != nil {
		return nil, nil, err
	}

	valid, err = NewMaskedTextDataset(validMetas, rootDirs, ling, cfg)
	if err != nil {
		return nil, nil, err
	}

	return train, valid, nil
}
