package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/loopifi/internal/config"
	"github.com/kikiluvv/loopifi/internal/jobs"
	"github.com/kikiluvv/loopifi/internal/logging"
	"github.com/kikiluvv/loopifi/internal/loops"
	"github.com/kikiluvv/loopifi/internal/pipeline"
	"github.com/kikiluvv/loopifi/pkg/util"
)

var (
	cfgFile  string
	verbose  bool
	closeLog = func() error { return nil }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("command failed")
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "loopifi",
	Short:         "loopifi - find and render seamless loops in videos",
	Long:          "Searches a window of a video for frame pairs that loop cleanly and renders the best ones as GIF, WebM and MP4.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		closeLog, err = logging.Init(logging.Options{
			Verbose: verbose,
			Format:  cfg.LogFormat,
			File:    cfg.LogFile,
		})
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

var makeFlags struct {
	start         string
	end           string
	noSound       bool
	noStabilize   bool
	keepTemp      bool
	dumpFrames    bool
	maxCandidates int
	record        bool
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	f := makeCmd.Flags()
	f.StringVar(&makeFlags.start, "start", "0", "interval start (SS, MM:SS or HH:MM:SS)")
	f.StringVar(&makeFlags.end, "end", "", "interval end (SS, MM:SS or HH:MM:SS)")
	f.BoolVar(&makeFlags.noSound, "no-sound", false, "strip audio from the WebM and MP4 outputs")
	f.BoolVar(&makeFlags.noStabilize, "no-stabilize", false, "skip vid.stab stabilization")
	f.BoolVar(&makeFlags.keepTemp, "keep-temp", false, "keep the frames workspace and stabilized copy")
	f.BoolVar(&makeFlags.dumpFrames, "dump-frames", false, "write sampled frame thumbnails into the frames workspace")
	f.IntVar(&makeFlags.maxCandidates, "max-candidates", 0, "number of loops to render (default from config)")
	f.BoolVar(&makeFlags.record, "record", false, "record the run as a job in the job database")
	_ = makeCmd.MarkFlagRequired("end")

	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum number of jobs to list")

	rootCmd.AddCommand(makeCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(configCmd)
}

var makeCmd = &cobra.Command{
	Use:   "make [input video]",
	Short: "Find loops in a video and render them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		source, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		iv, err := parseInterval(makeFlags.start, makeFlags.end)
		if err != nil {
			return err
		}

		opts := pipeline.OptionsFromConfig(cfg)
		opts.Sound = opts.Sound && !makeFlags.noSound
		opts.Stabilize = opts.Stabilize && !makeFlags.noStabilize
		opts.RetainTempFiles = opts.RetainTempFiles || makeFlags.keepTemp
		opts.DumpFrames = opts.DumpFrames || makeFlags.dumpFrames
		if makeFlags.maxCandidates > 0 {
			opts.MaxCandidates = makeFlags.maxCandidates
		}

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		var records []loops.LoopRecord
		if makeFlags.record {
			records, err = runRecorded(cmd.Context(), cfg, pipe, source, iv, opts)
		} else {
			records, err = pipe.Run(cmd.Context(), source, iv, opts, logProgress())
		}
		if err != nil {
			return err
		}

		if len(records) == 0 {
			logger := logging.WithComponent("cli")
			logger.Warn().Str("source", source).Msg("no loops found")
			return nil
		}

		fmt.Println(loopRecordsTable(records))
		return nil
	},
}

func runRecorded(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, source string, iv loops.Interval, opts pipeline.Options) ([]loops.LoopRecord, error) {
	store, err := jobs.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	job, err := store.Create(ctx, jobs.NewJob{
		SourcePath: source,
		Interval:   iv,
		Sound:      opts.Sound,
		Stabilize:  opts.Stabilize,
	})
	if err != nil {
		return nil, err
	}
	logger := logging.WithComponent("cli")
	logger.Info().Str("job_id", job.ID).Msg("job created")

	worker := jobs.NewWorker(log.Logger, store, progressLogger{pipe})
	return worker.Process(ctx, job, opts)
}

// progressLogger echoes stage changes to the console while the worker
// persists them.
type progressLogger struct {
	pipe *pipeline.Pipeline
}

func (p progressLogger) Run(ctx context.Context, source string, iv loops.Interval, opts pipeline.Options, onProgress pipeline.ProgressFunc) ([]loops.LoopRecord, error) {
	echo := logProgress()
	return p.pipe.Run(ctx, source, iv, opts, func(status string, percent float64) {
		echo(status, percent)
		onProgress(status, percent)
	})
}

func logProgress() pipeline.ProgressFunc {
	last := ""
	return func(status string, percent float64) {
		if status != last {
			log.Info().Str("status", status).Float64("percent", percent).Msg("progress")
			last = status
			return
		}
		log.Debug().Str("status", status).Float64("percent", percent).Msg("progress")
	}
}

func parseInterval(start, end string) (loops.Interval, error) {
	s, err := util.ParseTimestamp(start)
	if err != nil {
		return loops.Interval{}, fmt.Errorf("invalid --start: %w", err)
	}
	e, err := util.ParseTimestamp(end)
	if err != nil {
		return loops.Interval{}, fmt.Errorf("invalid --end: %w", err)
	}
	return loops.Interval{Start: s.Seconds(), End: e.Seconds()}, nil
}

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect recorded jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(cmd.Context(), jobsLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No jobs recorded")
			return nil
		}
		fmt.Println(jobsTable(list))
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show [job id]",
	Short: "Show a job and its loops",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		job, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, args[0])
		}

		fmt.Println(jobsTable([]*jobs.Job{job}))
		if job.Failed {
			fmt.Printf("Error: %s\n", job.Error)
		}
		if len(job.Loops) > 0 {
			fmt.Println(jobLoopsTable(job))
		}
		return nil
	},
}

func openStore(ctx context.Context) (*jobs.Store, error) {
	return jobs.Open(config.FromContext(ctx).DatabasePath)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.FromContext(cmd.Context()).Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
