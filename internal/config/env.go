package config

import (
	"os"
	"strings"
)

// EnvPath is the dotenv file loaded by LoadEnv.
const EnvPath = "~/.sidecar/.env"

// LoadEnv loads ~/.sidecar/.env into the current process environment
// without clobbering anything already set, and returns the parsed map
// (the up command replays it into the tmux global environment).
//
// Rules:
//   - Lines beginning with '#' are ignored.
//   - Blank lines are ignored.
//   - The first '=' splits KEY and VALUE; the rest of the line is the
//     value.
//   - No quote stripping. Write the .env without surrounding quotes.
func LoadEnv() map[string]string {
	env := map[string]string{}

	data, err := os.ReadFile(ExpandUser(EnvPath))
	if err != nil {
		return env
	}

	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		k, v, _ := strings.Cut(line, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" {
			continue
		}
		env[k] = v
		if _, exists := os.LookupEnv(k); !exists {
			os.Setenv(k, v)
		}
	}
	return env
}
