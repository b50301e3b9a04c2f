package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/agentvoice/internal/adapters/gateway"
	router "github.com/dkeye/agentvoice/internal/adapters/http"
	"github.com/dkeye/agentvoice/internal/app"
	"github.com/dkeye/agentvoice/internal/app/orch"
	"github.com/dkeye/agentvoice/internal/config"
	"github.com/dkeye/agentvoice/internal/detect"
	"github.com/dkeye/agentvoice/internal/session"
	"github.com/dkeye/agentvoice/internal/store"
	"github.com/dkeye/agentvoice/internal/tts"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening config store")
	}
	defer st.Close()

	backend := session.NewTmux(session.ExecRunner{}, cfg.Tmux.Socket, cfg.Machines)

	synth, err := tts.New(cfg.TTS)
	if err != nil {
		log.Warn().Err(err).Msg("speech synthesis disabled")
	}
	player := tts.NewCommandPlayer(cfg.TTS.Player)
	if !player.Available() {
		log.Warn().Msg("no audio player found, local playback disabled")
	}

	rooms := app.NewRoomRegistry(ctx, st, cfg.Defaults.RoomConfig(), app.SimplePolicy{})
	rooms.SetPoller(app.NewPoller(backend, cfg.Poll.Interval, cfg.Poll.Lines, cfg.Poll.Timeout))
	mic := app.NewMicLock(rooms)
	speaker := app.NewRoomSpeaker(rooms, mic, synth, tts.NewLocalSpeaker(synth, player))
	ttsRouter := app.NewTTSRouter(speaker, speaker, speaker, speaker, cfg.TTS.DefaultVoice, cfg.API.ProbeTimeout)

	o := &orch.Orchestrator{
		Rooms:   rooms,
		Mic:     mic,
		Backend: backend,
	}
	gw := gateway.New(o, gateway.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		InputLimit: cfg.InputRate.Limit,
		InputEvery: cfg.InputRate.Interval,
	})

	deps := router.Deps{
		Orch:    o,
		Gateway: gw,
		Speaker: speaker,
		Router:  ttsRouter,
	}
	// One detector for the server's lifetime so repeated speech requests
	// from the same caller hit its cache.
	if table, err := detect.NewProcTable(cfg.Detect.ProcMount); err != nil {
		log.Warn().Err(err).Msg("process table unavailable, pid-based session detection disabled")
	} else {
		deps.Sessions = detect.New(table, cfg.Detect.TTL)
	}

	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("agentvoice server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	rooms.Wait()
	log.Info().Msg("Server exited gracefully")
}
