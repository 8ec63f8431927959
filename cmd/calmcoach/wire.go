package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/catalog"
	"github.com/hammamikhairi/calmcoach/internal/config"
	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/engine"
	"github.com/hammamikhairi/calmcoach/internal/journal"
	"github.com/hammamikhairi/calmcoach/internal/logger"
	"github.com/hammamikhairi/calmcoach/internal/speech"
	"github.com/hammamikhairi/calmcoach/internal/storage"
)

// deps holds everything a command needs. Fields are nil when a feature is
// disabled.
type deps struct {
	cfg      *config.Config
	log      *logger.Logger
	routines *catalog.Catalog
	journal  journal.Store
	store    *storage.MemoryStore
	mouth    *speech.Mouth
	narrator domain.Narrator
	chime    domain.Chimer
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFromPath(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagNoSpeech {
		cfg.Voice.Enabled = false
	}
	if flagListen {
		cfg.Listen.Enabled = true
	}
	return cfg, cfg.Validate()
}

// setupLogger directs logs to the configured file so the terminal stays
// clean. Go's default log package (used by the whisper transcriber) goes
// to the same place.
func setupLogger(cfg *config.Config) (*logger.Logger, func()) {
	level := logger.ParseLevel(cfg.Log.Level)
	if flagVerbose {
		level = logger.LevelVerbose
	}
	if flagQuiet {
		level = logger.LevelOff
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.Log.File != "" && cfg.Log.File != "stderr" {
		if dir := filepath.Dir(cfg.Log.File); dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.Log.File, err)
		} else {
			out = f
			closeFn = func() { f.Close() }
		}
	}

	stdlog.SetOutput(out)
	stdlog.SetFlags(stdlog.Ltime)
	return logger.New(level, out), closeFn
}

// buildDeps wires storage, the routine catalog and narration. withVoice is
// false for commands that never speak.
func buildDeps(ctx context.Context, withVoice bool) (*deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, closeLog := setupLogger(cfg)
	d := &deps{cfg: cfg, log: log}
	d.closers = append(d.closers, closeLog)

	dirs := catalog.SearchPaths(mustGetwd())
	if cfg.Coach.PatternsDir != "" {
		dirs = append([]string{cfg.Coach.PatternsDir}, dirs...)
	}
	d.routines, err = catalog.New(log.Component("catalog"), dirs...)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("loading routines: %w", err)
	}

	d.journal, err = journal.Open(cfg.Journal.Backend, cfg.Journal.Path, log.Component("journal"))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	d.closers = append(d.closers, func() { d.journal.Close() })

	d.store = storage.NewMemoryStore(log)
	d.narrator = speech.NewNoOp(log)

	if withVoice {
		d.setupVoice(ctx)
	}
	return d, nil
}

func (d *deps) setupVoice(ctx context.Context) {
	cfg, log := d.cfg, d.log

	if !cfg.Voice.Enabled {
		log.Info("TTS disabled by config")
		return
	}

	player, err := speech.NewPlayer(log.Component("player"))
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return
	}
	if cfg.Coach.Chime {
		d.chime = speech.NewChime(player)
	}

	if cfg.Azure.Key == "" || cfg.Azure.Region == "" {
		log.Info("TTS disabled: set %s and %s to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
		return
	}

	voice := speech.Voice{
		Lang:  cfg.Voice.Lang,
		Name:  cfg.Voice.Name,
		Rate:  cfg.Voice.Rate,
		Pitch: cfg.Voice.Pitch,
	}.Normalized()
	tts := speech.NewAzureClient(cfg.Azure.Key, cfg.Azure.Region, log.Component("azure"), speech.WithVoice(voice))

	d.mouth = speech.NewMouth(tts, player, log.Component("mouth"),
		speech.WithCacheDir(cfg.Voice.CacheDir),
		speech.WithDiskWrite(cfg.Voice.DiskCache),
	)
	d.mouth.Start(ctx)
	d.mouth.Prefetch(ctx, speech.CompletionLines()...)
	d.mouth.Prefetch(ctx, speech.ListeningFillers()...)
	d.narrator = d.mouth
	log.Info("TTS enabled (voice=%s, rate=%.2f, pitch=%.2f)", voice.Name, voice.Rate, voice.Pitch)
}

// newEngine builds an engine over the given display and notifier.
func (d *deps) newEngine(display domain.Display, notifier domain.Notifier) *engine.Engine {
	opts := []engine.Option{
		engine.WithNarrator(d.narrator),
		engine.WithDisplay(display),
		engine.WithNotifier(notifier),
	}
	if d.chime != nil {
		opts = append(opts, engine.WithChimer(d.chime))
	}
	return engine.New(d.routines, d.store, d.journal, d.log.Component("engine"), opts...)
}

// newEar starts whisper voice commands, or returns nil when disabled.
func (d *deps) newEar(ctx context.Context) (*speech.Ear, error) {
	cfg := d.cfg.Listen
	if !cfg.Enabled {
		return nil, nil
	}
	if _, err := os.Stat(cfg.WhisperModel); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s", cfg.WhisperModel)
	}

	tempDir := filepath.Join(".calmcoach", "stt")
	os.MkdirAll(tempDir, 0o755)
	opts := []speech.EarOption{
		speech.WithRecordDuration(time.Duration(cfg.RecordSecs) * time.Second),
		speech.WithTempDir(tempDir),
	}

	var ear *speech.Ear
	if d.mouth != nil {
		ear = speech.NewEar(cfg.WhisperBin, cfg.WhisperModel, d.mouth, d.log.Component("ear"), opts...)
	} else {
		ear = speech.NewEar(cfg.WhisperBin, cfg.WhisperModel, nil, d.log.Component("ear"), opts...)
	}
	go ear.Run(ctx)
	d.log.Info("voice input enabled (bin=%s, model=%s, chunk=%ds)", cfg.WhisperBin, cfg.WhisperModel, cfg.RecordSecs)
	return ear, nil
}

// watchRoutines reloads routine files as they change.
func (d *deps) watchRoutines(ctx context.Context, onReload func(error)) {
	if !d.cfg.Coach.WatchPatterns {
		return
	}
	go func() {
		if err := d.routines.Watch(ctx, onReload); err != nil {
			d.log.Warn("routine watcher: %v", err)
		}
	}()
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
