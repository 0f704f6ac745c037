package main

import (
	"log"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/quam/internal/config"
	"github.com/yourusername/quam/internal/jobs"
	"github.com/yourusername/quam/internal/media"
	"github.com/yourusername/quam/internal/storage"
	"github.com/yourusername/quam/internal/transcribe"
)

// setupJobs は外部コマンドと文字起こしバックエンドを組み立てて Manager を返します。
// 戻り値の関数はイベント通知用の Redis 接続を閉じます。
func setupJobs(cfg *config.Config) (*jobs.Manager, func(), error) {
	workspace, err := storage.NewLocal(cfg.WorkDir)
	if err != nil {
		return nil, nil, err
	}

	runner := media.ExecRunner{}
	transcriber, err := transcribe.New(transcribe.Options{
		Backend:          transcribe.Backend(cfg.TranscribeBackend),
		WhisperPath:      cfg.WhisperPath,
		WhisperModelPath: cfg.WhisperModelPath,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	deps := jobs.Deps{
		Fetcher:     media.NewFetcher(cfg.YTDLPPath, runner),
		Splitter:    media.NewSplitter(cfg.FFmpegPath, cfg.FFprobePath, runner),
		Transcriber: transcriber,
		Workspace:   workspace,
	}

	closeFn := func() {}
	if cfg.EventsRedisURL != "" {
		opt, err := redis.ParseURL(cfg.EventsRedisURL)
		if err != nil {
			return nil, nil, err
		}
		publisher := jobs.NewRedisPublisher(redis.NewClient(opt), cfg.EventsChannel)
		deps.Publisher = publisher
		closeFn = func() {
			if err := publisher.Close(); err != nil {
				log.Printf("Failed to close event publisher: %v", err)
			}
		}
	}

	manager, err := jobs.NewManager(deps, jobs.Options{
		ChunkDuration: cfg.ChunkDuration(),
		MaxConcurrent: cfg.MaxConcurrentJobs,
	}, log.Default())
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	log.Printf("Jobs ready (workdir: %s, backend: %s, chunk: %s)", workspace.Root(), cfg.TranscribeBackend, cfg.ChunkDuration())
	return manager, closeFn, nil
}
