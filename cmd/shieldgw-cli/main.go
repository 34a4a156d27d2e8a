// Package main provides the shieldgw-cli command-line tool for managing the
// AI Shield gateway.
package main

import (
	"fmt"
	"os"

	aishield "github.com/ferro-labs/ai-shield"
	"github.com/ferro-labs/ai-shield/internal/upstream"
	"github.com/ferro-labs/ai-shield/internal/version"
	"gopkg.in/yaml.v3"
)

const usage = `shieldgw-cli — AI Shield gateway command line tool

Usage:
  shieldgw-cli <command> [arguments]

Commands:
  validate <config-file>    Validate a gateway configuration file (JSON/YAML)
  defaults                  Print the default configuration as YAML
  voices                    List the speech synthesis voice catalog
  version                   Print version info
  help                      Show this help
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "validate":
		cmdValidate()
	case "defaults":
		cmdDefaults()
	case "voices":
		cmdVoices()
	case "version":
		cmdVersion()
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
}

func cmdValidate() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: shieldgw-cli validate <config-file>")
		os.Exit(1)
	}
	path := os.Args[2]

	cfg, err := aishield.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Config is valid\n")
	fmt.Printf("  Listen:        %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Upstream mode: %s\n", cfg.Upstreams.Mode)
	fmt.Printf("  Cache:         %d entries, ttl %ds, storage %s\n",
		cfg.Cache.MaxEntries, cfg.Cache.DefaultTTLSeconds, cfg.Cache.Storage)
	fmt.Printf("  Request log:   %s\n", cfg.RequestLog.Backend)

	rules := []struct {
		name string
		rule aishield.RateLimitRule
	}{
		{"global", cfg.RateLimits.Global},
		{"speech", cfg.RateLimits.Speech},
		{"text", cfg.RateLimits.Text},
		{"voice_clone", cfg.RateLimits.VoiceClone},
	}
	fmt.Println("  Rate limits:")
	for _, r := range rules {
		fmt.Printf("    %-12s %d per %ds\n", r.name, r.rule.MaxRequests, r.rule.WindowSeconds)
	}
}

func cmdDefaults() {
	cfg := aishield.DefaultConfig()
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding defaults: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

func cmdVoices() {
	fmt.Println("Available voices:")
	for _, v := range upstream.Voices() {
		fmt.Printf("  %-16s %-14s %-8s %s\n", v.ID, v.Name, v.Language, v.Description)
	}
}

func cmdVersion() {
	fmt.Printf("shieldgw-cli %s\n", version.String())
}
