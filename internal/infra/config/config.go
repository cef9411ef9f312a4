package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR"  envDefault:":8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8083"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	TempDir     string `env:"TEMP_DIR"     envDefault:"/tmp/gifsmith"`

	// Extraction: 10 samples/second, JPEG quality ~80% (ffmpeg q:v scale,
	// lower is better; 4 roughly matches 80%).
	FrameSampleRate float64 `env:"FRAME_SAMPLE_RATE" envDefault:"10"`
	FrameQuality    int     `env:"FRAME_QUALITY"     envDefault:"4"`

	// Encoding: worker count for the off-thread decode/quantize pool, and an
	// optional remote palette resource shared by all workers.
	EncoderWorkers int    `env:"ENCODER_WORKERS"     envDefault:"2"`
	PaletteURL     string `env:"ENCODER_PALETTE_URL" envDefault:""`

	// Captioning.
	OllamaHost   string `env:"OLLAMA_HOST"   envDefault:"http://localhost:11434"`
	CaptionModel string `env:"CAPTION_MODEL" envDefault:"llama3.2-vision:11b"`

	// Artifact store.
	MinIOEndpoint     string `env:"MINIO_ENDPOINT"        envDefault:"localhost:9000"`
	MinIOAccessKey    string `env:"MINIO_ACCESS_KEY"      envDefault:"minioadmin"`
	MinIOSecretKey    string `env:"MINIO_SECRET_KEY"      envDefault:"minioadmin"`
	MinIOUseSSL       bool   `env:"MINIO_USE_SSL"         envDefault:"false"`
	MinIOGifBucket    string `env:"MINIO_GIF_BUCKET"      envDefault:"gifs"`
	PresignExpiryMins int    `env:"PRESIGN_EXPIRY_MINUTES" envDefault:"60"`

	// Status events. Empty URL disables publishing.
	RabbitMQURL         string `env:"RABBITMQ_URL"          envDefault:""`
	RabbitMQExchange    string `env:"RABBITMQ_EXCHANGE"     envDefault:"gifsmith.segment"`
	RabbitMQStatusQueue string `env:"RABBITMQ_STATUS_QUEUE" envDefault:"segment.status"`

	// Tracing. Empty endpoint disables tracing.
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:""`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
