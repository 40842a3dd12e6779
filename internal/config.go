package internal

import "time"

type Config struct {
	LogLevel            string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath      string        `env:"BADGER_FILEPATH,required=true"`
	TypingQuietInterval time.Duration `env:"TYPING_QUIET_INTERVAL,default=1s"`
	OutboxBufferSize    int           `env:"OUTBOX_BUFFER_SIZE,default=256"`
	FanoutBufferSize    int           `env:"FANOUT_BUFFER_SIZE,default=256"`
	BackendTimeout      time.Duration `env:"BACKEND_TIMEOUT,default=10s"`
	SinkTimeout         time.Duration `env:"SINK_TIMEOUT,default=1s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=1s"`
	StatsInterval       time.Duration `env:"STATS_INTERVAL,default=1m"`
	DefaultSenderLabel  string        `env:"DEFAULT_SENDER_LABEL,default=Asesor"`
	DebugPort           int           `env:"DEBUG_PORT,default=8081"`
	UserID              string        `env:"USER_ID,required=true"`
	ConversationID      string        `env:"CONVERSATION_ID,required=true"`
	PeerID              string        `env:"PEER_ID"`
}
