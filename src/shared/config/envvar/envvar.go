package envvar

import (
	"fmt"
	"os"
)

const (
	ENVIRONMENT                      = "ENVIRONMENT"
	AWS_ACCESS_KEY_ID                = "AWS_ACCESS_KEY_ID"
	AWS_SECRET_ACCESS_KEY            = "AWS_SECRET_ACCESS_KEY"
	RABBITMQ_URL                     = "RABBITMQ_URL"
	RABBITMQ_QUEUE_NAME              = "RABBITMQ_QUEUE_NAME"
	GOOGLE_CLOUD_KEY                 = "GOOGLE_CLOUD_KEY"
	GOOGLE_CLOUD_STORAGE_BUCKET_NAME = "GOOGLE_CLOUD_STORAGE_BUCKET_NAME"
	DEMUCS_BIN_PATH                  = "DEMUCS_BIN_PATH"
	AUDIO_SEPARATOR_BIN_PATH         = "AUDIO_SEPARATOR_BIN_PATH"
	FFMPEG_BIN_PATH                  = "FFMPEG_BIN_PATH"
	FFPROBE_BIN_PATH                 = "FFPROBE_BIN_PATH"
	KARAOKE_WORKING_DIR_PATH         = "KARAOKE_WORKING_DIR_PATH"
	MODEL_CACHE_DIR                  = "MODEL_CACHE_DIR"
)

func MustGet(key string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	if val == "" {
		panic(fmt.Sprintf("Env variable is empty for key %s", key))
	}

	return val
}

// GetOr is for the few settings that have a sane default on every environment
func GetOr(key string, fallback string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet || val == "" {
		return fallback
	}

	return val
}
