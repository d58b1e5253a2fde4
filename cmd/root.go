// root.go viper root command code
package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"oasd/internal/conf"
	"oasd/internal/server"
)

// RootCommand creates and returns the root command. OAS has no subcommand
// surface worth a cobra tree of its own: the server is the whole program,
// so the root command's RunE runs the daemon directly rather than
// delegating to a "serve" subcommand.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oasd",
		Short: "OpenAL Audio Server",
		Long:  "oasd is a network-attached 3D audio rendering server speaking the OpenAL wire protocol.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initialize(); err != nil {
			return fmt.Errorf("error initializing: %w", err)
		}
		return nil
	}

	return rootCmd
}

// initialize is called before the root command runs, after the context is
// ready. Nothing beyond flag binding is required before New wires the
// server, so this is presently a no-op kept for parity with the
// established PersistentPreRunE hook point.
func initialize() error {
	return nil
}

// setupFlags defines the flags global to the command line interface and
// binds them to viper so env vars and the config file can supply the same
// values.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().IntVarP(&settings.Port, "port", "p", viper.GetInt("port"), "TCP port to listen on")
	rootCmd.PersistentFlags().StringVar(&settings.AudioDevice, "audio-device", viper.GetString("audio_device"), "Playback device name, or \"null\" for no audio backend")
	rootCmd.PersistentFlags().StringVar(&settings.CacheDirectory, "cache-directory", viper.GetString("cache_directory"), "Directory audio files are read from and uploaded to")
	rootCmd.PersistentFlags().BoolVar(&settings.GUI, "gui", viper.GetBool("gui"), "Enable the scene observer GUI")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

// runServe builds and runs the server until SIGINT/SIGTERM, shutting the
// listener and audio handler down before returning.
func runServe(settings *conf.Settings) error {
	srv, err := server.New(settings)
	if err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			log.Printf("error closing server: %v\n", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("oasd listening on port %d (audio device %q)\n", settings.Port, settings.AudioDevice)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("error running server: %w", err)
	}
	return nil
}
