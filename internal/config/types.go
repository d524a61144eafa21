package config

import "github.com/cwbudde/facefit/internal/fit"

// Config is the complete facefit configuration
type Config struct {
	LogLevel      string `yaml:"log_level"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	Fit           Fit    `yaml:"fit"`
	Render        Render `yaml:"render"`
	Server        Server `yaml:"server"`
}

// Fit describes one fitting job. It is stored verbatim in checkpoints.
type Fit struct {
	TargetPath  string                `yaml:"target" json:"targetPath"`
	ModelPath   string                `yaml:"model,omitempty" json:"modelPath,omitempty"`
	Method      string                `yaml:"method" json:"method"`
	Dimensions  int                   `yaml:"dimensions" json:"dimensions"`
	Channel     int                   `yaml:"channel,omitempty" json:"channel,omitempty"`
	MaxLoops    int                   `yaml:"max_loops" json:"maxLoops"`
	Seed        int64                 `yaml:"seed" json:"seed"`
	Gradient    Gradient              `yaml:"gradient" json:"gradient"`
	Sampler     Sampler               `yaml:"sampler" json:"sampler"`
	Mayfly      Mayfly                `yaml:"mayfly" json:"mayfly"`
	Convergence fit.ConvergenceConfig `yaml:"convergence" json:"convergence"`

	// CheckpointInterval saves a checkpoint every N loops (0 = only at the end)
	CheckpointInterval int `yaml:"checkpoint_interval,omitempty" json:"checkpointInterval,omitempty"`
}

// Gradient holds finite-difference gradient descent settings
type Gradient struct {
	Dx         float64 `yaml:"dx" json:"dx"`
	Step       float64 `yaml:"step" json:"step"`
	LightScale float64 `yaml:"light_scale" json:"lightScale"`
}

// Sampler holds coordinate sampler settings
type Sampler struct {
	Steps           []int `yaml:"steps,omitempty" json:"steps,omitempty"`
	DeterminedLoops int   `yaml:"determined_loops" json:"determinedLoops"`

	// StepsScale derives coefficient step counts from the model's deviations
	// when positive and Steps is empty
	StepsScale float64 `yaml:"steps_scale,omitempty" json:"stepsScale,omitempty"`
}

// Mayfly holds population optimizer settings
type Mayfly struct {
	Iters   int `yaml:"iters" json:"iters"`
	PopSize int `yaml:"pop_size" json:"popSize"`
}

// Render selects how observations are produced
type Render struct {
	Backend string `yaml:"backend"`
	Address string `yaml:"address,omitempty"`
	Rows    int    `yaml:"rows"`
	Cols    int    `yaml:"cols"`
	Workers int    `yaml:"workers"`

	// ModelResolution is the latitude band count of the synthetic model
	ModelResolution int `yaml:"model_resolution"`
}

// Server configures the HTTP job API
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		LogLevel:      "info",
		CheckpointDir: "./data",
		Fit: Fit{
			Method:     fit.MethodGradient,
			Dimensions: 10,
			MaxLoops:   10,
			Seed:       42,
			Gradient: Gradient{
				Dx:         0.1,
				Step:       100,
				LightScale: 1.0 / 50,
			},
			Mayfly: Mayfly{
				Iters:   100,
				PopSize: 30,
			},
			Convergence: fit.DisabledConvergenceConfig(),
		},
		Render: Render{
			Backend:         "cpu",
			Rows:            64,
			Cols:            64,
			ModelResolution: 24,
		},
		Server: Server{
			Addr: ":8080",
		},
	}
}
