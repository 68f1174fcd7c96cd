package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"memsync/config"
	"memsync/offsets"
	"memsync/session"
	"memsync/skins"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/pflag"
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	allowRoot := pflag.Bool("allow-root", false, "Run even when started as root")
	pflag.Parse()

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memsync"))

	if os.Getenv("USER") == "root" && !*allowRoot {
		log.Warn("Start without sudo; grant ptrace access to your user instead (or pass --allow-root)")
		os.Exit(1)
	}

	cctx, err := config.NewContext(config.ConfigDir(pflag.CommandLine))
	if err != nil {
		log.Warn(err)
		os.Exit(1)
	}

	cfg, loadErr := config.Load(cctx, pflag.CommandLine)
	if loadErr != nil {
		// The broken file is left for the user to fix
		log.Warn("Using defaults:", loadErr)
		cfg = config.Default()
	}

	log.Infoln("Config path:", cctx.ConfigFile())
	log.Infoln("Skin changer enabled:", cfg.Enabled)

	state, unknown := cfg.State()
	for _, key := range unknown {
		log.Warn("Ignoring unknown weapon category", key)
	}
	configured := state.Configured()
	for _, c := range configured {
		s := state[c]
		log.Infoln(fmt.Sprintf("  %s: PaintKit=%d, Seed=%d, Wear=%.4f, StatTrak=%d", c, s.PaintKit, s.Seed, s.Wear, s.StatTrak))
	}

	if len(configured) == 0 {
		log.Warn("No skins configured! Edit", cctx.ConfigFile(), "and set enabled = true and a paint_kit for any weapon.")
		if loadErr == nil {
			cfg.Enabled = true
			if err := config.Write(cctx, cfg); err != nil {
				log.Warn("Failed to write config:", err)
			} else {
				log.Infoln("Enabled skin changer in", cctx.ConfigFile())
			}
		}
	}

	rc := cfg.Resolver(cctx)
	resolver := offsets.NewResolver(rc, offsets.NewDumperSource(rc.Source.LocalCache, rc.Source))
	changer := skins.NewChanger(cfg.ChangerOptions())

	engine := session.New(attacher(cfg.Process.Name), resolver, changer, state, session.Options{
		TickInterval:    cfg.Engine.TickInterval,
		AttachBackoff:   cfg.Engine.AttachBackoff,
		Enabled:         cfg.Enabled,
		ForceFullUpdate: cfg.Engine.ForceFullUpdate,
		Debug:           cfg.Debug,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infoln("Waiting for", cfg.Process.Name, "- press Ctrl+C to exit")
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Warn(err)
	}
	log.Infoln("Exiting")
}
