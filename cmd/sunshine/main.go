// Command sunshine is the game-streaming host process: it owns the paired
// client store, display configuration, app supervisor, capture pipeline,
// WebRTC session registry, and the HTTPS config API, wiring them together
// in one setup pass. On a shutdown signal it cancels the shared context,
// which stops the HTTPS server, the token sweeper and the Playnite client;
// there is no ordered per-component teardown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Nonary/Vibepollo-sub000/internal/api"
	"github.com/Nonary/Vibepollo-sub000/internal/auth"
	"github.com/Nonary/Vibepollo-sub000/internal/config"
	"github.com/Nonary/Vibepollo-sub000/internal/displayconfig"
	"github.com/Nonary/Vibepollo-sub000/internal/losslessscaling"
	"github.com/Nonary/Vibepollo-sub000/internal/moncrypto"
	"github.com/Nonary/Vibepollo-sub000/internal/pairing"
	"github.com/Nonary/Vibepollo-sub000/internal/playnite"
	"github.com/Nonary/Vibepollo-sub000/internal/proc"
	"github.com/Nonary/Vibepollo-sub000/internal/webrtcsess"
)

func main() {
	var (
		dataDir     string
		httpsPort   int
		staticDir   string
		helperDir   string
		launcherExe string
	)

	root := &cobra.Command{
		Use:   "sunshine",
		Short: "GameStream-compatible streaming host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), dataDir, httpsPort, staticDir, helperDir, launcherExe)
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", ".", "directory holding apps.json, clients.json, sunshine.conf and the host identity")
	root.Flags().IntVar(&httpsPort, "port", 47990, "HTTPS config API port")
	root.Flags().StringVar(&staticDir, "static-dir", "", "built front-end assets directory")
	root.Flags().StringVar(&helperDir, "helper-dir", ".", "directory containing the capture and display-config helper executables")
	root.Flags().StringVar(&launcherExe, "launcher-exe", "playnite-launcher", "path to the Playnite launcher sibling binary")

	root.AddCommand(&cobra.Command{
		Use:   "config-check",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(filepath.Join(dataDir, "sunshine.conf"))
			if err != nil {
				return err
			}
			fmt.Printf("sunshine.conf ok (%d keys)\n", len(cfg.All()))
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "pair-reset",
		Short: "Remove every paired client",
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := pairing.NewStore(filepath.Join(dataDir, "clients.json"))
			if err != nil {
				return err
			}
			if err := clients.UnpairAll(); err != nil {
				return err
			}
			fmt.Println("all paired clients removed")
			return nil
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dataDir string, httpsPort int, staticDir, helperDir, launcherExe string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "sunshine").Logger()

	identity, err := moncrypto.LoadOrGenerate(filepath.Join(dataDir, "cert.pem"), filepath.Join(dataDir, "key.pem"))
	if err != nil {
		return fmt.Errorf("load host identity: %w", err)
	}

	clients, err := pairing.NewStore(filepath.Join(dataDir, "clients.json"))
	if err != nil {
		return fmt.Errorf("load paired clients: %w", err)
	}
	pairingMgr := pairing.NewManager(identity, clients)

	cfg, err := config.Load(filepath.Join(dataDir, "sunshine.conf"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	apps, err := proc.NewStore(filepath.Join(dataDir, "apps.json"))
	if err != nil {
		return fmt.Errorf("load apps: %w", err)
	}

	launcher := &playniteLauncher{exePath: launcherExe, log: log.With().Str("component", "playnite-launcher").Logger()}
	supervisor := proc.NewSupervisor(apps, launcher, log)

	display := displayconfig.NewHelperClient()
	if err := display.EnsureRunning(helperDir); err != nil {
		log.Warn().Err(err).Msg("display-config helper unavailable")
	}

	lsfg := losslessscaling.NewController(filepath.Join(dataDir, "profiles.xml"), "", log.With().Str("component", "losslessscaling").Logger())
	supervisor.SetFramegenSidecar(lsfg)

	// webrtcReg implements capture.FanOut; the capture session itself is
	// constructed per-launch by the encode pipeline, not at startup.
	webrtcReg := webrtcsess.NewRegistry(identity)
	webrtcEngine := webrtcsess.NewEngine(webrtcReg, log)

	pc := playnite.NewClient(log.With().Str("component", "playnite").Logger())
	go pc.Run(ctx)

	salt, _ := cfg.Get("credentials_salt")
	if salt == "" {
		salt = identity.FingerprintHex()
	}
	username, _ := cfg.Get("username")
	passwordHash, _ := cfg.Get("password_hash")
	tokens := auth.NewTokenStore(salt, 24*time.Hour, 30*24*time.Hour)
	go tokens.RunSweeper(ctx.Done(), time.Hour)

	gate := auth.NewGate(auth.Credentials{Username: username, PasswordHash: passwordHash, Salt: salt}, tokens, auth.OriginLAN)

	hostUUID, _ := cfg.Get("host_uuid")
	if hostUUID == "" {
		hostUUID = uuid.NewString()
		if err := cfg.Set("host_uuid", hostUUID); err != nil {
			log.Warn().Err(err).Msg("persist host uuid")
		}
	}
	hostName, _ := cfg.Get("sunshine_name")
	if hostName == "" {
		hostName, _ = os.Hostname()
	}

	srv := api.NewServer(httpsPort, staticDir, log)
	srv.HostUUID = hostUUID
	srv.HostName = hostName
	srv.LogPath = filepath.Join(dataDir, "sunshine.log")
	srv.Golden = displayconfig.NewGoldenStore(filepath.Join(dataDir, "golden_display.json"))
	srv.Identity = identity
	srv.Pairing = pairingMgr
	srv.Clients = clients
	srv.Display = display
	srv.Apps = apps
	srv.Supervisor = supervisor
	srv.WebRTC = webrtcReg
	srv.Engine = webrtcEngine
	srv.Auth = gate
	srv.Config = cfg
	srv.Playnite = pc
	srv.LSFG = lsfg

	log.Info().Int("port", httpsPort).Msg("starting config API")
	if err := srv.ListenAndServeTLS(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve https: %w", err)
	}
	return nil
}

// playniteLauncher spawns the playnite-launcher sibling binary. It keeps no
// record of the spawned process; Stop only logs the request.
type playniteLauncher struct {
	exePath string
	log     zerolog.Logger
}

func (p *playniteLauncher) Launch(ctx context.Context, args proc.PlayniteLaunchArgs) (*os.Process, error) {
	cmdArgs := []string{
		"--game-id", args.GameID,
		"--focus-attempts", strconv.Itoa(args.FocusAttempts),
		"--focus-timeout", strconv.Itoa(args.FocusTimeoutSecs),
		"--exit-timeout", strconv.Itoa(args.ExitTimeout),
	}
	if args.Fullscreen {
		cmdArgs = append(cmdArgs, "--fullscreen")
	}
	if args.FocusExitOnFirst {
		cmdArgs = append(cmdArgs, "--focus-exit-on-first")
	}
	cmd := exec.CommandContext(ctx, p.exePath, cmdArgs...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch playnite-launcher: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process, nil
}

func (p *playniteLauncher) Stop(gameID string) error {
	p.log.Info().Str("gameId", gameID).Msg("stop requested")
	return nil
}
