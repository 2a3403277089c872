package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/example/go-tts-dataprep/internal/dataset"
	"github.com/spf13/cobra"
)

func newSplitCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Generate shuffled train/valid split lists for a data root",
		Long: "Shuffles the corpus inventory and writes the split list files next to the\n" +
			"per-utterance artifact directories: train.lst/valid.lst for the vocoder,\n" +
			"am_train.lst/am_valid.lst for the acoustic model (requires --paths-metafile),\n" +
			"bert_train.lst/bert_valid.lst for masked-symbol pretraining.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

			switch kind {
			case "voc":
				err = dataset.GenVocoderSplit(rng, cfg.Paths.DataRoot, cfg.Split.Ratio)
			case "am":
				if cfg.Paths.Metafile == "" {
					return fmt.Errorf("--paths-metafile is required for --kind am")
				}

				var badlist map[string]struct{}
				badlist, err = dataset.LoadBadlist(cfg.Paths.Badlist)
				if err != nil {
					return err
				}

				err = dataset.GenAcousticSplit(rng, cfg.Paths.Metafile, cfg.Paths.DataRoot, badlist, cfg.Split.Ratio)
			case "bert":
				if cfg.Paths.Metafile == "" {
					return fmt.Errorf("--paths-metafile is required for --kind bert")
				}

				err = dataset.GenMaskedTextSplit(rng, cfg.Paths.Metafile, cfg.Paths.DataRoot, cfg.Split.Ratio)
			default:
				return fmt.Errorf("unknown split kind %q (want voc, am or bert)", kind)
			}

			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(os.Stdout, "ok")
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "voc", "Which split lists to generate: voc, am or bert")

	return cmd
}
