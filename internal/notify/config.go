package notify

import (
	"fmt"
	"os"
	"slices"
	"strconv"
)

const envPrefix = "OISCALPER_NTFY_"

var priorities = []string{"min", "low", "default", "high", "urgent"}

// Config selects the ntfy topic that receives signal flips.
//
// Each field reads OISCALPER_NTFY_<NAME> first and falls back to the plain
// NTFY_<NAME> variable so a shared ntfy setup keeps working.
type Config struct {
	Enabled bool
	Server  string
	Topic   string
	Token   string

	// Priority applies to STRONG BUY and STRONG SELL.
	Priority string
	// CautionPriority applies to CAUTIOUS BUY; empty means "default".
	CautionPriority string
	// Tags are prepended to the per-signal tag.
	Tags string
}

// LoadConfig reads the notification settings from the environment.
func LoadConfig() *Config {
	return &Config{
		Enabled:         envBool("ENABLED", false),
		Server:          envString("SERVER", "https://ntfy.sh"),
		Topic:           envString("TOPIC", ""),
		Token:           envString("TOKEN", ""),
		Priority:        envString("PRIORITY", "high"),
		CautionPriority: envString("CAUTION_PRIORITY", "default"),
		Tags:            envString("TAGS", "nifty"),
	}
}

// Validate rejects an enabled config without a topic or with an unknown
// priority.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Topic == "" {
		return fmt.Errorf("%sTOPIC is required when signal alerts are enabled", envPrefix)
	}
	for name, p := range map[string]string{"PRIORITY": c.Priority, "CAUTION_PRIORITY": c.CautionPriority} {
		if p == "" && name == "CAUTION_PRIORITY" {
			continue
		}
		if !slices.Contains(priorities, p) {
			return fmt.Errorf("invalid %s%s %q (valid: %v)", envPrefix, name, p, priorities)
		}
	}
	return nil
}

func lookup(name string) (string, bool) {
	if v := os.Getenv(envPrefix + name); v != "" {
		return v, true
	}
	if v := os.Getenv("NTFY_" + name); v != "" {
		return v, true
	}
	return "", false
}

func envString(name, def string) string {
	if v, ok := lookup(name); ok {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	if v, ok := lookup(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
