package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/example/go-tts-dataprep/internal/audio"
	"github.com/example/go-tts-dataprep/internal/config"
	"github.com/example/go-tts-dataprep/internal/npy"
	"github.com/example/go-tts-dataprep/internal/tensor"
)

// ErrLengthMismatch reports a waveform that is too short to cover its mel
// frames after reflection padding. It signals a feature-extraction bug
// upstream, not an input-size issue.
var ErrLengthMismatch = errors.New("waveform/mel length mismatch")

// VocoderExample is one decoded (waveform, mel) pair. The waveform is trimmed
// so len(Waveform) == len(Mel) * hop length.
type VocoderExample struct {
	Waveform []float32
	Mel      [][]float32
}

// VocoderBatch is a fixed-length random crop of every example in a batch.
type VocoderBatch struct {
	// Waveforms has shape [B, 1, batch_max_steps].
	Waveforms *tensor.Float
	// Mels has shape [B, C, batch_max_frames].
	Mels *tensor.Float
}

// VocoderDataset serves (waveform, mel) pairs for vocoder training.
type VocoderDataset struct {
	records []VocoderRecord

	sampleRate       int
	nFFT             int
	hopLength        int
	batchMaxSteps    int
	batchMaxFrames   int
	auxContextWindow int
	nsfEnable        bool

	cache *slotCache[VocoderExample]
}

// NewVocoderDataset builds a dataset from parallel lists of split files and
// data roots. When every metafile turns out empty, the data roots are scanned
// directly, pairing wav files with existing mel files.
func NewVocoderDataset(metafiles, rootDirs []string, cfg config.Config) (*VocoderDataset, error) {
	if len(metafiles) != len(rootDirs) {
		return nil, fmt.Errorf("dataset: %d metafiles but %d root dirs", len(metafiles), len(rootDirs))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &VocoderDataset{
		sampleRate:       cfg.Audio.SamplingRate,
		nFFT:             cfg.Audio.NFFT,
		hopLength:        cfg.Audio.HopLength,
		batchMaxSteps:    cfg.Vocoder.BatchMaxSteps,
		batchMaxFrames:   cfg.Vocoder.BatchMaxSteps / cfg.Audio.HopLength,
		auxContextWindow: 0,
		nsfEnable:        cfg.Vocoder.NSFEnable,
	}

	for i, metafile := range metafiles {
		if !fileExists(metafile) {
			return nil, fmt.Errorf("dataset: meta file not found: %s", metafile)
		}

		if err := requireDir(rootDirs[i]); err != nil {
			return nil, err
		}

		records, err := loadVocoderMeta(metafile, rootDirs[i])
		if err != nil {
			return nil, err
		}

		d.records = append(d.records, records...)
	}

	if len(d.records) == 0 {
		for _, root := range rootDirs {
			records, err := scanVocoderDir(root)
			if err != nil {
				return nil, err
			}

			d.records = append(d.records, records...)
		}
	}

	if cfg.Vocoder.AllowCache {
		d.cache = newSlotCache[VocoderExample](len(d.records))
	}

	return d, nil
}

// Len returns the number of utterances.
func (d *VocoderDataset) Len() int {
	return len(d.records)
}

// Records exposes the utterance records for inspection tooling.
func (d *VocoderDataset) Records() []VocoderRecord {
	return append([]VocoderRecord(nil), d.records...)
}

// Example decodes the idx-th (waveform, mel) pair, serving it from the cache
// when enabled. The waveform is reflection-padded by one FFT window and then
// trimmed so its length is exactly len(mel) * hop length.
func (d *VocoderDataset) Example(idx int) (*VocoderExample, error) {
	if idx < 0 || idx >= len(d.records) {
		return nil, fmt.Errorf("dataset: index %d out of bounds [0, %d)", idx, len(d.records))
	}

	if cached, ok, err := d.cache.get(idx); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	rec := d.records[idx]

	wavData, err := audio.DecodeWAVFile(rec.WavFile, d.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	melData, err := npy.Load2D(rec.MelFile)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	if len(melData) == 0 {
		return nil, fmt.Errorf("dataset: %s: mel file %s has no frames", rec.Index, rec.MelFile)
	}

	if d.nsfEnable {
		melData, err = appendExcitationChannels(melData, rec.FrameF0File, rec.FrameUVFile, rec.Index)
		if err != nil {
			return nil, err
		}
	}

	wavData, err = audio.ReflectPadEnd(wavData, d.nFFT)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", rec.Index, err)
	}

	want := len(melData) * d.hopLength
	if len(wavData) < want {
		return nil, fmt.Errorf("dataset: %s: %w: %d samples for %d mel frames (need %d)", rec.Index, ErrLengthMismatch, len(wavData), len(melData), want)
	}

	ex := &VocoderExample{Waveform: wavData[:want], Mel: melData}

	if err := d.cache.put(idx, ex); err != nil {
		return nil, err
	}

	return ex, nil
}

// Collate draws an independent random aligned window per example and stacks
// the crops: waveforms as [B, 1, batch_max_steps], mels as
// [B, C, batch_max_frames]. Every example must have more mel frames than the
// crop needs; shorter utterances should have been filtered at split time.
func (d *VocoderDataset) Collate(rng *rand.Rand, batch []*VocoderExample) (*VocoderBatch, error) {
	if len(batch) == 0 {
		return nil, errors.New("dataset: empty vocoder batch")
	}

	if len(batch[0].Mel) == 0 {
		return nil, errors.New("dataset: example 0 has no mel frames")
	}

	b := len(batch)
	steps := d.batchMaxSteps
	frames := d.batchMaxFrames + d.auxContextWindow

	channels := len(batch[0].Mel[0])
	wavFlat := make([]float32, 0, b*steps)
	melFlat := make([]float32, 0, b*channels*frames)

	for i, ex := range batch {
		melLen := len(ex.Mel)
		low := d.auxContextWindow
		high := melLen - d.batchMaxFrames - d.auxContextWindow

		if high <= low {
			return nil, fmt.Errorf("dataset: example %d has %d mel frames, need more than %d for cropping", i, melLen, d.batchMaxFrames+2*d.auxContextWindow)
		}

		if len(ex.Mel[0]) != channels {
			return nil, fmt.Errorf("dataset: example %d has %d mel channels, example 0 has %d", i, len(ex.Mel[0]), channels)
		}

		start := low + rng.IntN(high-low)

		wavStart := start * d.hopLength
		wavFlat = append(wavFlat, ex.Waveform[wavStart:wavStart+steps]...)

		melStart := start - d.auxContextWindow
		melCrop := ex.Mel[melStart : melStart+frames]

		// Frame-major to channel-major: [C, T].
		for c := 0; c < channels; c++ {
			for t := 0; t < frames; t++ {
				melFlat = append(melFlat, melCrop[t][c])
			}
		}
	}

	waveforms, err := tensor.NewFloat(wavFlat, []int64{int64(b), 1, int64(steps)})
	if err != nil {
		return nil, err
	}

	mels, err := tensor.NewFloat(melFlat, []int64{int64(b), int64(channels), int64(frames)})
	if err != nil {
		return nil, err
	}

	return &VocoderBatch{Waveforms: waveforms, Mels: mels}, nil
}

// appendExcitationChannels widens each mel frame with the frame-level pitch
// and voicing values used by NSF-style vocoders.
func appendExcitationChannels(mel [][]float32, frameF0File, frameUVFile, index string) ([][]float32, error) {
	frameF0, err := npy.Load1D(frameF0File)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", index, err)
	}

	frameUV, err := npy.Load1D(frameUVFile)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", index, err)
	}

	if len(frameF0) != len(mel) || len(frameUV) != len(mel) {
		return nil, fmt.Errorf("dataset: %s: frame f0/uv lengths (%d, %d) do not match %d mel frames", index, len(frameF0), len(frameUV), len(mel))
	}

	out := make([][]float32, len(mel))
	for i, row := range mel {
		widened := make([]float32, 0, len(row)+2)
		widened = append(widened, row...)
		widened = append(widened, frameF0[i], frameUV[i])
		out[i] = widened
	}

	return out, nil
}

// GetVocoderDatasets generates missing train/valid split lists for every data
// root and returns the train and valid datasets.
func GetVocoderDatasets(rng *rand.Rand, rootDirs []string, cfg config.Config) (train, valid *VocoderDataset, err error) {
	var trainMetas, validMetas []string

	for _, root := range rootDirs {
		trainMeta := filepath.Join(root, VocoderTrainList)
		validMeta := filepath.Join(root, VocoderValidList)

		if !fileExists(trainMeta) || !fileExists(validMeta) {
			if err := GenVocoderSplit(rng, root, cfg.Split.Ratio); err != nil {
				return nil, nil, err
			}
		}

		trainMetas = append(trainMetas, trainMeta)
		validMetas = append(validMetas, validMeta)
	}

	train, err = NewVocoderDataset(trainMetas, rootDirs, cfg)
	if err != nil {
		return nil, nil, err
	}

	valid, err = NewVocoderDataset(validMetas, rootDirs, cfg)
	if err != nil {
		return nil, nil, err
	}

	return train, valid, nil
}
