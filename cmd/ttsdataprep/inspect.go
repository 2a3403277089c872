package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/example/go-tts-dataprep/internal/dataset"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load a vocoder batch and print its tensor shapes",
		Long: "Builds the vocoder train/valid datasets from the configured data root\n" +
			"(generating split lists if missing), collates one batch and prints the\n" +
			"resulting tensor shapes. Useful as an end-to-end smoke check of a corpus.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

			train, valid, err := dataset.GetVocoderDatasets(rng, []string{cfg.Paths.DataRoot}, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "train utterances: %d\n", train.Len())
			fmt.Fprintf(os.Stdout, "valid utterances: %d\n", valid.Len())

			if batchSize > train.Len() {
				batchSize = train.Len()
			}

			if batchSize == 0 {
				return fmt.Errorf("train split is empty")
			}

			records := train.Records()

			batch := make([]*dataset.VocoderExample, batchSize)
			indices := make([]string, batchSize)
			for i := range batch {
				batch[i], err = train.Example(i)
				if err != nil {
					return err
				}

				indices[i] = records[i].Index
			}

			fmt.Fprintf(os.Stdout, "batch utterances: %s\n", strings.Join(indices, " "))

			collated, err := train.Collate(rng, batch)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "waveforms: %v\n", collated.Waveforms.Shape())
			fmt.Fprintf(os.Stdout, "mels:      %v\n", collated.Mels.Shape())

			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 4, "Number of examples to collate")

	return cmd
}
