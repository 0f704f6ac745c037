// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定（APP_USERNAME が空なら認証なし）
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵

	// サーバー設定
	Port                   string // APIサーバーのポート番号
	GinMode                string // Ginの実行モード (debug, release, test)
	ShutdownTimeoutSeconds int    // シャットダウン時にジョブの終了を待つ秒数

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、* で全許可）

	// ジョブ設定
	WorkDir           string // 一時ファイルの保存先
	ChunkDurationMs   int64  // チャンク長（ミリ秒）
	MaxConcurrentJobs int    // 同時実行ジョブ数の上限（0 で無制限）

	// 外部コマンド
	YTDLPPath   string // yt-dlp 実行ファイルのパス
	FFmpegPath  string // ffmpeg 実行ファイルのパス
	FFprobePath string // ffprobe 実行ファイルのパス

	// 文字起こし設定
	TranscribeBackend string // whisper-cpp または openai
	WhisperPath       string // whisper.cpp CLI のパス
	WhisperModelPath  string // ggml モデルファイルのパス
	OpenAIAPIKey      string // OpenAI APIキー
	OpenAIModel       string // OpenAI の文字起こしモデル
	OpenAIBaseURL     string // OpenAI API のベースURL

	// イベント通知（Redis Pub/Sub、空なら無効）
	EventsRedisURL string
	EventsChannel  string
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// 認証設定
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		// サーバー設定
		Port:                   getEnv("PORT", "8000"),
		GinMode:                getEnv("GIN_MODE", "debug"),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		// ジョブ設定
		WorkDir:           getEnv("WORK_DIR", filepath.Join(os.TempDir(), "quam")),
		ChunkDurationMs:   getEnvAsInt64("CHUNK_DURATION_MS", 300000), // 5分
		MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 0),

		// 外部コマンド
		YTDLPPath:   getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		// 文字起こし設定
		TranscribeBackend: getEnv("TRANSCRIBE_BACKEND", "whisper-cpp"),
		WhisperPath:       getEnv("WHISPER_PATH", "whisper-cli"),
		WhisperModelPath:  getEnv("WHISPER_MODEL_PATH", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "whisper-1"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		// イベント通知
		EventsRedisURL: getEnv("EVENTS_REDIS_URL", ""),
		EventsChannel:  getEnv("EVENTS_CHANNEL", "transcribe:events"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// ChunkDuration はチャンク長を time.Duration で返します。
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkDurationMs) * time.Millisecond
}

// ShutdownTimeout はシャットダウン待ち時間を返します。
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// AuthEnabled はログイン必須かどうかを返します。
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != ""
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.ChunkDurationMs <= 0 {
		return fmt.Errorf("CHUNK_DURATION_MS must be positive")
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must not be negative")
	}

	switch c.TranscribeBackend {
	case "whisper-cpp":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
		}
	default:
		return fmt.Errorf("unsupported TRANSCRIBE_BACKEND: %s", c.TranscribeBackend)
	}

	if c.AuthEnabled() {
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required when APP_USERNAME is set")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required when APP_USERNAME is set")
		}
	}

	// ローカル開発ではモデル未設定でも起動できる
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.TranscribeBackend == "whisper-cpp" && c.WhisperModelPath == "" {
			return fmt.Errorf("WHISPER_MODEL_PATH is required in release mode")
		}
		if c.CORSAllowedOrigins == "*" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must list origins in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
