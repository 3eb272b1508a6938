package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/WShawnMing/WatchTogether/internal/app"
	"github.com/WShawnMing/WatchTogether/internal/discovery"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "WATCH_TOGETHER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	host = configVar[string]{
		envKey:       "WATCH_TOGETHER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "PORT",
		flagKey:      "port",
		defaultValue: 4000,
	}
	logLevel = configVar[string]{
		envKey:       "WATCH_TOGETHER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	storageDir = configVar[string]{
		envKey:       "WATCH_TOGETHER_STORAGE_DIR",
		flagKey:      "storage-dir",
		defaultValue: ".watchtogether/uploads",
	}
	ffprobePath = configVar[string]{
		envKey:       "FFPROBE_PATH",
		flagKey:      "ffprobe-path",
		defaultValue: "",
	}
	ffmpegPath = configVar[string]{
		envKey:       "FFMPEG_PATH",
		flagKey:      "ffmpeg-path",
		defaultValue: "",
	}
	roomIdleTTLMinutes = configVar[int]{
		envKey:       "ROOM_IDLE_TTL_MINUTES",
		flagKey:      "room-idle-ttl-minutes",
		defaultValue: 120,
	}
	maxMembers = configVar[int]{
		envKey:       "WATCH_TOGETHER_MAX_MEMBERS",
		flagKey:      "max-members",
		defaultValue: 6,
	}
	directStreamMaxBps = configVar[int]{
		envKey:       "WATCH_TOGETHER_DIRECT_STREAM_MAX_BPS",
		flagKey:      "direct-stream-max-bps",
		defaultValue: 900_000,
	}
	discoveryEnabled = configVar[bool]{
		envKey:       "WATCH_TOGETHER_DISABLE_DISCOVERY",
		flagKey:      "disable-discovery",
		defaultValue: false,
	}
	discoveryPort = configVar[int]{
		envKey:       "WATCH_TOGETHER_DISCOVERY_PORT",
		flagKey:      "discovery-port",
		defaultValue: discovery.DefaultPort,
	}
	metricsEnabled = configVar[bool]{
		envKey:       "WATCH_TOGETHER_DISABLE_METRICS",
		flagKey:      "disable-metrics",
		defaultValue: false,
	}
	redisEnabled = configVar[bool]{
		envKey:       "WATCH_TOGETHER_ENABLE_REDIS",
		flagKey:      "enable-redis",
		defaultValue: false,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	compatProxyDisabled = configVar[bool]{
		envKey:       "WATCH_TOGETHER_DISABLE_COMPAT_PROXY",
		flagKey:      "disable-compat-proxy",
		defaultValue: false,
	}
)

func loadAppConfig() *app.Config {
	pflag.String(secret.flagKey, secret.defaultValue, "HMAC secret for reconnect tokens")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(storageDir.flagKey, storageDir.defaultValue, "Directory for uploaded media/subtitle files")
	pflag.String(ffprobePath.flagKey, ffprobePath.defaultValue, "Path to ffprobe binary, empty disables duration/bitrate probing")
	pflag.String(ffmpegPath.flagKey, ffmpegPath.defaultValue, "Path to ffmpeg binary, for the pluggable compat-proxy transcode helper")
	pflag.Int(roomIdleTTLMinutes.flagKey, roomIdleTTLMinutes.defaultValue, "Minutes an empty room is kept before eviction")
	pflag.Int(maxMembers.flagKey, maxMembers.defaultValue, "Maximum members per room")
	pflag.Int(directStreamMaxBps.flagKey, directStreamMaxBps.defaultValue, "Bitrate ceiling below which a media upload is reported optimized for direct streaming")
	pflag.Bool(discoveryEnabled.flagKey, discoveryEnabled.defaultValue, "Disable LAN discovery (UDP announce/listen + subnet probe)")
	pflag.Int(discoveryPort.flagKey, discoveryPort.defaultValue, "UDP/HTTP port used for LAN discovery")
	pflag.Bool(metricsEnabled.flagKey, metricsEnabled.defaultValue, "Disable the /api/metrics endpoint")
	pflag.Bool(redisEnabled.flagKey, redisEnabled.defaultValue, "Enable the Redis room persistence cache")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Bool(compatProxyDisabled.flagKey, compatProxyDisabled.defaultValue, "Disable recommending the compat-proxy transcode helper for unoptimized uploads")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	for _, v := range []struct {
		flagKey, envKey string
	}{
		{secret.flagKey, secret.envKey},
		{host.flagKey, host.envKey},
		{port.flagKey, port.envKey},
		{logLevel.flagKey, logLevel.envKey},
		{storageDir.flagKey, storageDir.envKey},
		{ffprobePath.flagKey, ffprobePath.envKey},
		{ffmpegPath.flagKey, ffmpegPath.envKey},
		{roomIdleTTLMinutes.flagKey, roomIdleTTLMinutes.envKey},
		{maxMembers.flagKey, maxMembers.envKey},
		{directStreamMaxBps.flagKey, directStreamMaxBps.envKey},
		{discoveryEnabled.flagKey, discoveryEnabled.envKey},
		{discoveryPort.flagKey, discoveryPort.envKey},
		{metricsEnabled.flagKey, metricsEnabled.envKey},
		{redisEnabled.flagKey, redisEnabled.envKey},
		{redisHost.flagKey, redisHost.envKey},
		{redisPort.flagKey, redisPort.envKey},
		{redisPassword.flagKey, redisPassword.envKey},
		{compatProxyDisabled.flagKey, compatProxyDisabled.envKey},
	} {
		viper.BindEnv(v.flagKey, v.envKey)
	}

	return &app.Config{
		Host:               viper.GetString(host.flagKey),
		Port:               viper.GetInt(port.flagKey),
		LogLevel:           viper.GetString(logLevel.flagKey),
		Secret:             viper.GetString(secret.flagKey),
		StorageDir:         viper.GetString(storageDir.flagKey),
		FFprobePath:        viper.GetString(ffprobePath.flagKey),
		FFmpegPath:         viper.GetString(ffmpegPath.flagKey),
		RoomIdleTTLMin:     viper.GetInt(roomIdleTTLMinutes.flagKey),
		MaxMembers:         viper.GetInt(maxMembers.flagKey),
		DirectStreamMaxBps: viper.GetInt(directStreamMaxBps.flagKey),
		CompatProxyEnabled: !viper.GetBool(compatProxyDisabled.flagKey),
		DiscoveryEnabled:   !viper.GetBool(discoveryEnabled.flagKey),
		DiscoveryPort:      viper.GetInt(discoveryPort.flagKey),
		MetricsEnabled:     !viper.GetBool(metricsEnabled.flagKey),
		RedisEnabled:       viper.GetBool(redisEnabled.flagKey),
		RedisHost:          viper.GetString(redisHost.flagKey),
		RedisPort:          viper.GetInt(redisPort.flagKey),
		RedisPassword:      viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	cfg := loadAppConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Printf("starting watchtogether server with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, cfg))
}
