package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `
PointRide dispatch service

Usage:
  dispatch [flags]

Flags:
  -config-path string   Path to the config yaml file (default "config.yaml")
  -help                 Show this message

Every value in the config file can be overridden with the matching
environment variable, e.g. DATABASE_HOST or HTTP_PORT.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}

// PrintConfig dumps the effective configuration without secrets.
func PrintConfig(cfg *Config) {
	fmt.Printf("http:      %s:%s\n", cfg.HTTP.Host, cfg.HTTP.Port)
	fmt.Printf("database:  %s:%s/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	fmt.Printf("redis:     %s\n", cfg.Redis.GetAddr())
	fmt.Printf("rabbitmq:  %s:%s\n", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	fmt.Printf("recovery:  sweep every %s\n", cfg.Recovery.Interval)
}
