package config

import (
	"encoding/base64"
	"fmt"
)

// PresenceBackend selects where the online-user registry keeps its state.
// The in-memory backend is process-local; a deployment with more than one
// server instance behind a load balancer must use the redis backend so all
// instances see the same registry.
type PresenceBackend string

const (
	PresenceMemory PresenceBackend = "memory"
	PresenceRedis  PresenceBackend = "redis"
)

type Config struct {
	ServerAddr      string
	DatabaseDSN     string
	SigningKey      []byte
	AllowedOrigins  []string
	PresenceBackend PresenceBackend
	RedisAddr       string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, presenceBackend, redisAddr string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	backend := PresenceBackend(presenceBackend)
	switch backend {
	case "":
		backend = PresenceMemory
	case PresenceMemory:
	case PresenceRedis:
		if redisAddr == "" {
			return nil, fmt.Errorf("redis address cannot be empty with redis presence backend")
		}
	default:
		return nil, fmt.Errorf("unknown presence backend %q", presenceBackend)
	}

	return &Config{
		ServerAddr:      serverAddr,
		DatabaseDSN:     databaseDSN,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		PresenceBackend: backend,
		RedisAddr:       redisAddr,
	}, nil
}
