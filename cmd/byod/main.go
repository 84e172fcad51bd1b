package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var flags cliOverrides
	var showVersion bool
	var printConfig bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/byod/config.yml)")
	flag.StringVar(&flags.APIKey, "api-key", "", "TRMNL device API key")
	flag.StringVar(&flags.BaseURL, "base-url", "", "TRMNL server base URL")
	flag.StringVar(&flags.Surface, "surface", "", "display surface: window, terminal or headless")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("byod - TRMNL display client\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if printConfig {
		out, err := yaml.Marshal(cfg.redacted())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if err := runClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
