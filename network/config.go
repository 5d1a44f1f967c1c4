package network

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Environment variables read by ResolveConfig.
const (
	EnvURL      = "OPENCOIN_URL"
	EnvUser     = "OPENCOIN_USER"
	EnvPassword = "OPENCOIN_PASS"
)

// ClientConfig holds the connection parameters of a JSON-RPC endpoint.
type ClientConfig struct {
	URL      string        `json:"url"`
	User     string        `json:"user"`
	Password string        `json:"password"`
	Timeout  time.Duration `json:"timeout"`

	Logger        *logrus.Logger `json:"-"`
	TraceMessages bool           `json:"trace_messages"`
}

// ResolveConfig merges client configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (OPENCOIN_URL, OPENCOIN_USER, OPENCOIN_PASS)
//  3. The service location published in the currency description (lowest priority)
//
// The location may be an opencoin:// address; ResolveLocation turns it into
// a URL.
func ResolveConfig(flags *ClientConfig, env map[string]string, location string) (*ClientConfig, error) {
	result := ClientConfig{URL: location}

	if env != nil {
		if v, ok := env[EnvURL]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env[EnvUser]; ok && v != "" {
			result.User = v
		}
		if v, ok := env[EnvPassword]; ok && v != "" {
			result.Password = v
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
		if flags.Timeout != 0 {
			result.Timeout = flags.Timeout
		}
		result.Logger = flags.Logger
		result.TraceMessages = flags.TraceMessages
	}

	if result.URL == "" {
		return nil, fmt.Errorf("%w: no endpoint configured (set --url, %s, or the currency service location)", ErrInvalidLocation, EnvURL)
	}
	return &result, nil
}
