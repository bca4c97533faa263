package main

import (
	"fmt"

	"careportal/internal/config"
)

func printBanner(cfg config.Config) {
	fmt.Println("========================================")
	fmt.Println("  Care Portal Messaging Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  WebSocket: ws://localhost:%s/ws\n", cfg.ServerPort)
	switch cfg.DBDriver {
	case "mysql":
		fmt.Printf("  Database: mysql %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case "sqlite3":
		fmt.Printf("  Database: sqlite3 %s\n", cfg.DBPath)
	default:
		fmt.Printf("  Database: %s\n", cfg.DBDriver)
	}
	if cfg.RedisURL != "" {
		fmt.Println("  Profile cache: redis")
	}
	if cfg.TypingTimeout > 0 {
		fmt.Printf("  Typing timeout: %s\n", cfg.TypingTimeout)
	}
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Println("========================================")
}
