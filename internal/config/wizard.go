package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Let's configure the knowledge portal.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Database location.
	dbPrompt := promptui.Prompt{
		Label:   "SQLite database path",
		Default: cfg.Database.Path,
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	cfg.Database.Path = strings.TrimSpace(dbPath)

	// 2. Listener port.
	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	// 3. Admin role.
	rolePrompt := promptui.Prompt{
		Label:   "Role id allowed to author guided flows",
		Default: cfg.Auth.AdminRole,
	}
	role, err := rolePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("admin role: %w", err)
	}
	cfg.Auth.AdminRole = strings.TrimSpace(role)

	// 4. Token verification.
	tokenPrompt := promptui.Select{
		Label: "Caller identification",
		Items: []string{
			"body: trust role_id in request bodies (development)",
			"token: require a signed bearer token",
		},
	}
	tokenIdx, _, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("caller identification: %w", err)
	}
	if tokenIdx == 1 {
		secretPrompt := promptui.Prompt{
			Label: "JWT signing secret",
			Mask:  '*',
			Validate: func(s string) error {
				if len(s) < 16 {
					return fmt.Errorf("secret must be at least 16 characters")
				}
				return nil
			},
		}
		secret, err := secretPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("jwt secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		cfg.Auth.RequireToken = true
	}

	// 5. Optional Redis cache.
	redisPrompt := promptui.Prompt{
		Label:   "Redis address for the step cache (blank to disable)",
		Default: "",
	}
	redisAddr, err := redisPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("redis address: %w", err)
	}
	cfg.Cache.RedisAddr = strings.TrimSpace(redisAddr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n <= 0 || n > MaxTCPPort {
		return fmt.Errorf("port must be between 1 and %d", MaxTCPPort)
	}
	return nil
}
