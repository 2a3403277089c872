package dataset

import "fmt"

// Stream identifies one of the parallel integer-coded linguistic streams that
// make up an encoded transcript.
type Stream int

const (
	StreamSymbol Stream = iota
	StreamTone
	StreamSyllableFlag
	StreamWordSegment
	StreamEmotion
	StreamSpeaker
)

// LinguisticFeatures is the encoded form of one transcript: parallel
// phoneme-level streams sharing a single sequence length. The final position
// is a sequence terminator appended by the encoder.
type LinguisticFeatures struct {
	Symbols       []int64
	Tones         []int64
	SyllableFlags []int64
	WordSegments  []int64
	Emotions      []int64
	Speakers      []int64
}

// Len returns the shared sequence length.
func (f *LinguisticFeatures) Len() int {
	return len(f.Symbols)
}

// Stream returns the backing slice for one stream.
func (f *LinguisticFeatures) Stream(s Stream) []int64 {
	switch s {
	case StreamSymbol:
		return f.Symbols
	case StreamTone:
		return f.Tones
	case StreamSyllableFlag:
		return f.SyllableFlags
	case StreamWordSegment:
		return f.WordSegments
	case StreamEmotion:
		return f.Emotions
	case StreamSpeaker:
		return f.Speakers
	default:
		return nil
	}
}

// Validate checks that every stream shares the symbol stream's length.
func (f *LinguisticFeatures) Validate() error {
	n := len(f.Symbols)
	if n == 0 {
		return fmt.Errorf("dataset: empty linguistic feature tuple")
	}

	for _, s := range []Stream{StreamTone, StreamSyllableFlag, StreamWordSegment, StreamEmotion, StreamSpeaker} {
		if got := len(f.Stream(s)); got != n {
			return fmt.Errorf("dataset: linguistic stream %d has length %d, symbol stream has %d", s, got, n)
		}
	}

	return nil
}

// LinguisticUnit encodes transcripts into parallel integer streams. The
// concrete symbol vocabulary lives outside this module; datasets only rely on
// this contract.
type LinguisticUnit interface {
	// EncodeSymbolSequence encodes a transcript, appending a sequence
	// terminator as the final position of every stream.
	EncodeSymbolSequence(text string) (*LinguisticFeatures, error)

	// PadID returns the padding id used when batching the given stream.
	PadID(s Stream) int64

	// SymbolVocabSize returns the number of symbol categories, the range for
	// random-token corruption.
	SymbolVocabSize() int

	// MaskSymbolID returns the symbol id of the mask token.
	MaskSymbolID() int64
}
