// Command surrogate builds a surrogate table for one classifier over the tasks
// of an OpenML study and writes it as ARFF.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/surrogate/internal/config"
	"github.com/banshee-data/surrogate/internal/dataset"
	"github.com/banshee-data/surrogate/internal/db"
	"github.com/banshee-data/surrogate/internal/monitoring"
	"github.com/banshee-data/surrogate/internal/openml"
	"github.com/banshee-data/surrogate/internal/pipeline"
	"github.com/banshee-data/surrogate/internal/surrogate"
	"github.com/banshee-data/surrogate/internal/version"
)

type options struct {
	configPath  string
	showVersion bool
	verbose     bool
	history     bool

	cacheDir   string
	cacheAge   time.Duration
	outputDir  string
	studyID    string
	classifier string
	scoring    string
	numRuns    int
	gridSize   int
	nominalMin int
	trees      int
	seed       uint64
	openmlURL  string
	apiKey     string
	timeout    time.Duration
	normalize  string
	report     bool
	noCache    bool
}

func newFlagSet(name string) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "JSON config file (see "+config.ExampleConfigPath+")")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&o.verbose, "verbose", false, "Log per-task diagnostics")
	fs.BoolVar(&o.history, "history", false, "List previous builds of the classifier and exit")

	fs.StringVar(&o.cacheDir, "cache-dir", config.DefaultCacheDirectory, "Directory of the OpenML cache database")
	fs.DurationVar(&o.cacheAge, "cache-max-age", 0, "Refetch cached OpenML listings older than this (0 keeps them forever)")
	fs.StringVar(&o.outputDir, "output-dir", config.DefaultOutputDirectory, "Directory the ARFF table is written to")
	fs.StringVar(&o.studyID, "study", config.DefaultStudyID, "OpenML study id or alias")
	fs.StringVar(&o.classifier, "classifier", config.DefaultClassifier, "Classifier search space (random_forest, adaboost, libsvm_svc)")
	fs.StringVar(&o.scoring, "scoring", config.DefaultScoring, "OpenML evaluation measure")
	fs.IntVar(&o.numRuns, "num-runs", config.DefaultNumRuns, "Maximum runs fetched per task")
	fs.IntVar(&o.gridSize, "grid-size", config.DefaultGridSize, "Maximum grid values per hyperparameter")
	fs.IntVar(&o.nominalMin, "nominal-min", config.DefaultNominalMin, "Minimum runs per categorical value")
	fs.IntVar(&o.trees, "trees", config.DefaultEstimators, "Trees per surrogate forest")
	fs.Uint64Var(&o.seed, "seed", config.DefaultRandomSeed, "Forest random seed")
	fs.StringVar(&o.openmlURL, "openml-url", config.DefaultOpenMLURL, "OpenML JSON API base URL")
	fs.StringVar(&o.apiKey, "api-key", "", "OpenML API key")
	fs.DurationVar(&o.timeout, "timeout", config.DefaultHTTPTimeout, "HTTP timeout per OpenML request")
	fs.StringVar(&o.normalize, "normalize", "", "Scale score columns (MinMaxScaler or StandardScaler)")
	fs.BoolVar(&o.report, "report", false, "Also write PNG and HTML box plots of the scores")
	fs.BoolVar(&o.noCache, "no-cache", false, "Query OpenML directly instead of the local cache")
	return fs, o
}

// resolveConfig loads the config file, if any, and overrides it with the
// flags that were set explicitly.
func resolveConfig(fs *flag.FlagSet, o *options) (*config.PipelineConfig, error) {
	cfg := &config.PipelineConfig{}
	if o.configPath != "" {
		loaded, err := config.LoadPipelineConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cache-dir":
			cfg.CacheDirectory = &o.cacheDir
		case "cache-max-age":
			s := o.cacheAge.String()
			cfg.CacheMaxAge = &s
		case "output-dir":
			cfg.OutputDirectory = &o.outputDir
		case "study":
			cfg.StudyID = &o.studyID
		case "classifier":
			cfg.Classifier = &o.classifier
		case "scoring":
			cfg.Scoring = &o.scoring
		case "num-runs":
			cfg.NumRuns = &o.numRuns
		case "grid-size":
			cfg.GridSize = &o.gridSize
		case "nominal-min":
			cfg.NominalMin = &o.nominalMin
		case "trees":
			cfg.Estimators = &o.trees
		case "seed":
			cfg.RandomSeed = &o.seed
		case "openml-url":
			cfg.OpenMLURL = &o.openmlURL
		case "api-key":
			cfg.APIKey = &o.apiKey
		case "timeout":
			s := o.timeout.String()
			cfg.HTTPTimeout = &s
		case "normalize":
			cfg.NormalizeScores = &o.normalize
		case "report":
			cfg.Report = &o.report
		case "no-cache":
			cfg.DisableCache = &o.noCache
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging routes ops logs to w and diag logs to w only when verbose.
func setupLogging(w io.Writer, verbose bool) {
	var diag io.Writer
	if verbose {
		diag = w
	}
	openml.SetLogWriters(w, diag)
	dataset.SetLogWriters(diag)
	pipeline.SetLogWriters(w, diag)
	if verbose {
		monitoring.SetOutput(w)
	} else {
		monitoring.SetLogger(nil)
	}
}

func newRunner(cfg *config.PipelineConfig, cache *db.DB) *pipeline.Runner {
	var repo openml.Repository = openml.NewClient(cfg.GetOpenMLURL(), cfg.GetAPIKey(), cfg.GetHTTPTimeout())
	if !cfg.GetDisableCache() {
		cached := db.NewCachedRepository(cache, repo)
		cached.MaxAge = cfg.GetCacheMaxAge()
		repo = cached
	}
	return &pipeline.Runner{
		Config: pipeline.Config{
			StudyID:         cfg.GetStudyID(),
			Classifier:      cfg.GetClassifier(),
			Scoring:         cfg.GetScoring(),
			NumRuns:         cfg.GetNumRuns(),
			GridSize:        cfg.GetGridSize(),
			OutputDir:       cfg.GetOutputDirectory(),
			NormalizeScores: cfg.GetNormalizeScores(),
			Report:          cfg.GetReport(),
		},
		Tasks:  repo,
		Loader: dataset.NewLoader(repo, cfg.GetNominalMin()),
		Trainer: surrogate.ForestTrainer{
			Trees: cfg.GetEstimators(),
			Seed:  cfg.GetRandomSeed(),
		},
		Recorder: db.NewBuildStore(cache.DB),
	}
}

func printHistory(ctx context.Context, w io.Writer, cache *db.DB, classifier string) error {
	builds, err := db.NewBuildStore(cache.DB).ListByClassifier(ctx, classifier)
	if err != nil {
		return err
	}
	for _, b := range builds {
		fmt.Fprintf(w, "%s  %s  study=%s c=%d rows=%d tasks=%d skipped=%d  %s\n",
			time.Unix(0, b.CreatedAt).Format(time.RFC3339), b.ID, b.StudyID, b.GridSize,
			b.Rows, len(b.TrainedTasks), len(b.SkippedTasks), b.OutputPath)
	}
	return nil
}

func main() {
	fs, opts := newFlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := resolveConfig(fs, opts)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(os.Stderr, opts.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := db.OpenCache(cfg.GetCacheDirectory())
	if err != nil {
		log.Fatalf("Failed to open cache database: %v", err)
	}
	defer cache.Close()

	if opts.history {
		if err := printHistory(ctx, os.Stdout, cache, cfg.GetClassifier()); err != nil {
			log.Fatalf("Failed to list builds: %v", err)
		}
		return
	}

	res, err := newRunner(cfg, cache).Run(ctx)
	if err != nil {
		cache.Close()
		log.Fatalf("Surrogate build failed: %v", err)
	}
	log.Printf("wrote %s: %d configurations, %d tasks trained, %d skipped",
		res.OutputPath, res.GridSize, len(res.Trained), len(res.Skipped))
	for _, p := range res.Reports {
		log.Printf("wrote %s", p)
	}
}
