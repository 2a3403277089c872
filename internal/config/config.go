package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string           `mapstructure:"log_level"`
	Paths    PathsConfig      `mapstructure:"paths"`
	Audio    AudioConfig      `mapstructure:"audio"`
	Vocoder  VocoderConfig    `mapstructure:"vocoder"`
	Acoustic AcousticConfig   `mapstructure:"acoustic"`
	Masked   MaskedTextConfig `mapstructure:"masked_text"`
	Split    SplitConfig      `mapstructure:"split"`
}

type PathsConfig struct {
	DataRoot string `mapstructure:"data_root"`
	Metafile string `mapstructure:"metafile"`
	Badlist  string `mapstructure:"badlist"`
}

type AudioConfig struct {
	SamplingRate int `mapstructure:"sampling_rate"`
	NFFT         int `mapstructure:"n_fft"`
	HopLength    int `mapstructure:"hop_length"`
}

type VocoderConfig struct {
	BatchMaxSteps int  `mapstructure:"batch_max_steps"`
	NSFEnable     bool `mapstructure:"nsf_enable"`
	AllowCache    bool `mapstructure:"allow_cache"`
}

type AcousticConfig struct {
	OutputsPerStep int  `mapstructure:"outputs_per_step"`
	NSFEnable      bool `mapstructure:"nsf_enable"`
	AllowCache     bool `mapstructure:"allow_cache"`
}

type MaskedTextConfig struct {
	MaskRatio  float64 `mapstructure:"mask_ratio"`
	MaskProb   float64 `mapstructure:"mask_prob"`
	RandomProb float64 `mapstructure:"random_prob"`
	AllowCache bool    `mapstructure:"allow_cache"`
}

type SplitConfig struct {
	Ratio float64 `mapstructure:"ratio"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			DataRoot: ".",
			Metafile: "",
			Badlist:  "",
		},
		Audio: AudioConfig{
			SamplingRate: 24000,
			NFFT:         1024,
			HopLength:    240,
		},
		Vocoder: VocoderConfig{
			BatchMaxSteps: 9600,
			NSFEnable:     false,
			AllowCache:    false,
		},
		Acoustic: AcousticConfig{
			OutputsPerStep: 3,
			NSFEnable:      false,
			AllowCache:     false,
		},
		Masked: MaskedTextConfig{
			MaskRatio:  0.15,
			MaskProb:   0.8,
			RandomProb: 0.1,
			AllowCache: false,
		},
		Split: SplitConfig{
			Ratio: 0.98,
		},
	}
}

// Validate rejects settings the batching engine cannot run with.
func (c Config) Validate() error {
	if c.Audio.SamplingRate < 1 {
		return fmt.Errorf("config: sampling_rate must be >= 1, got %d", c.Audio.SamplingRate)
	}

	if c.Audio.HopLength < 1 {
		return fmt.Errorf("config: hop_length must be >= 1, got %d", c.Audio.HopLength)
	}

	if c.Audio.NFFT < 1 {
		return fmt.Errorf("config: n_fft must be >= 1, got %d", c.Audio.NFFT)
	}

	if c.Vocoder.BatchMaxSteps%c.Audio.HopLength != 0 {
		return fmt.Errorf("config: batch_max_steps %d must be a multiple of hop_length %d", c.Vocoder.BatchMaxSteps, c.Audio.HopLength)
	}

	if c.Acoustic.OutputsPerStep < 1 {
		return fmt.Errorf("config: outputs_per_step must be >= 1, got %d", c.Acoustic.OutputsPerStep)
	}

	if c.Masked.MaskRatio < 0 || c.Masked.MaskRatio > 1 {
		return fmt.Errorf("config: mask_ratio must be in [0, 1], got %v", c.Masked.MaskRatio)
	}

	if c.Masked.MaskProb+c.Masked.RandomProb > 1 {
		return fmt.Errorf("config: mask_prob + random_prob must be <= 1, got %v", c.Masked.MaskProb+c.Masked.RandomProb)
	}

	if c.Split.Ratio <= 0 || c.Split.Ratio > 1 {
		return fmt.Errorf("config: split ratio must be in (0, 1], got %v", c.Split.Ratio)
	}

	return nil
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("paths-data-root", defaults.Paths.DataRoot, "Root directory holding wav/, mel/, duration/, f0/, energy/, frame_f0/, frame_uv/")
	fs.String("paths-metafile", defaults.Paths.Metafile, "Raw metafile with index<TAB>transcript lines")
	fs.String("paths-badlist", defaults.Paths.Badlist, "Optional file listing utterance indices to exclude")
	fs.Int("audio-sampling-rate", defaults.Audio.SamplingRate, "Waveform sampling rate in Hz")
	fs.Int("audio-n-fft", defaults.Audio.NFFT, "FFT window size used when the corpus was analyzed")
	fs.Int("audio-hop-length", defaults.Audio.HopLength, "Samples per mel frame")
	fs.Int("vocoder-batch-max-steps", defaults.Vocoder.BatchMaxSteps, "Vocoder crop length in waveform samples")
	fs.Bool("vocoder-nsf-enable", defaults.Vocoder.NSFEnable, "Append frame-level f0/uv channels to vocoder mels")
	fs.Bool("vocoder-allow-cache", defaults.Vocoder.AllowCache, "Cache decoded vocoder examples in memory")
	fs.Int("acoustic-outputs-per-step", defaults.Acoustic.OutputsPerStep, "Decoder output frames per step; mel budgets round up to this")
	fs.Bool("acoustic-nsf-enable", defaults.Acoustic.NSFEnable, "Append frame-level f0/uv channels to acoustic mels")
	fs.Bool("acoustic-allow-cache", defaults.Acoustic.AllowCache, "Cache decoded acoustic examples in memory")
	fs.Float64("masked-text-mask-ratio", defaults.Masked.MaskRatio, "Fraction of symbol positions selected for corruption")
	fs.Float64("masked-text-mask-prob", defaults.Masked.MaskProb, "Fraction of selected positions replaced by the mask token")
	fs.Float64("masked-text-random-prob", defaults.Masked.RandomProb, "Fraction of selected positions replaced by a random token")
	fs.Bool("masked-text-allow-cache", defaults.Masked.AllowCache, "Cache encoded linguistic tuples in memory")
	fs.Float64("split-ratio", defaults.Split.Ratio, "Train split fraction when generating list files")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("TTSDATAPREP")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ttsdataprep")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.data_root", c.Paths.DataRoot)
	v.SetDefault("paths.metafile", c.Paths.Metafile)
	v.SetDefault("paths.badlist", c.Paths.Badlist)
	v.SetDefault("audio.sampling_rate", c.Audio.SamplingRate)
	v.SetDefault("audio.n_fft", c.Audio.NFFT)
	v.SetDefault("audio.hop_length", c.Audio.HopLength)
	v.SetDefault("vocoder.batch_max_steps", c.Vocoder.BatchMaxSteps)
	v.SetDefault("vocoder.nsf_enable", c.Vocoder.NSFEnable)
	v.SetDefault("vocoder.allow_cache", c.Vocoder.AllowCache)
	v.SetDefault("acoustic.outputs_per_step", c.Acoustic.OutputsPerStep)
	v.SetDefault("acoustic.nsf_enable", c.Acoustic.NSFEnable)
	v.SetDefault("acoustic.allow_cache", c.Acoustic.AllowCache)
	v.SetDefault("masked_text.mask_ratio", c.Masked.MaskRatio)
	v.SetDefault("masked_text.mask_prob", c.Masked.MaskProb)
	v.SetDefault("masked_text.random_prob", c.Masked.RandomProb)
	v.SetDefault("masked_text.allow_cache", c.Masked.AllowCache)
	v.SetDefault("split.ratio", c.Split.Ratio)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("log_level", "log-level")
	v.RegisterAlias("paths.data_root", "paths-data-root")
	v.RegisterAlias("paths.metafile", "paths-metafile")
	v.RegisterAlias("paths.badlist", "paths-badlist")
	v.RegisterAlias("audio.sampling_rate", "audio-sampling-rate")
	v.RegisterAlias("audio.n_fft", "audio-n-fft")
	v.RegisterAlias("audio.hop_length", "audio-hop-length")
	v.RegisterAlias("vocoder.batch_max_steps", "vocoder-batch-max-steps")
	v.RegisterAlias("vocoder.nsf_enable", "vocoder-nsf-enable")
	v.RegisterAlias("vocoder.allow_cache", "vocoder-allow-cache")
	v.RegisterAlias("acoustic.outputs_per_step", "acoustic-outputs-per-step")
	v.RegisterAlias("acoustic.nsf_enable", "acoustic-nsf-enable")
	v.RegisterAlias("acoustic.allow_cache", "acoustic-allow-cache")
	v.RegisterAlias("masked_text.mask_ratio", "masked-text-mask-ratio")
	v.RegisterAlias("masked_text.mask_prob", "masked-text-mask-prob")
	v.RegisterAlias("masked_text.random_prob", "masked-text-random-prob")
	v.RegisterAlias("masked_text.allow_cache", "masked-text-allow-cache")
	v.RegisterAlias("split.ratio", "split-ratio")
}
