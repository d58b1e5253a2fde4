// Command oasd runs the OpenAL Audio Server.
package main

import (
	"log"

	"oasd/cmd"
	"oasd/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("error: %v", err)
	}
}
