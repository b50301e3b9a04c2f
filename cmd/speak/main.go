// Command speak is invoked by agent tooling to say something out loud. The
// server works out the tmux session the caller runs in and plays the text
// in that session's room, on the host speaker, or through a direct
// synthesis call as the routing rules decide. When the server cannot be
// reached the same routing runs in this process.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/dkeye/agentvoice/internal/adapters/apiclient"
	"github.com/dkeye/agentvoice/internal/app"
	"github.com/dkeye/agentvoice/internal/config"
	"github.com/dkeye/agentvoice/internal/detect"
	"github.com/dkeye/agentvoice/internal/domain"
	"github.com/dkeye/agentvoice/internal/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		voice   = flag.StringP("voice", "v", "", "voice to use instead of the room's voice")
		sess    = flag.StringP("session", "s", "", "session to speak in (detected from the process tree when empty)")
		apiURL  = flag.String("api", "", "server base URL (default from config)")
		verbose = flag.Bool("verbose", false, "log routing details to stderr")
	)
	flag.Parse()

	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	text, err := readText(flag.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "speak:", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "speak:", err)
		return 2
	}
	if *apiURL != "" {
		cfg.API.URL = *apiURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := apiclient.New(cfg.API.URL, cfg.TTS.Timeout+10*time.Second)

	// The server routes and detects the session itself, caching the walk
	// for our parent across invocations.
	remote, err := client.Speak(ctx, text, *voice, domain.SessionName(*sess), os.Getppid())
	if err == nil {
		return report(remote.Attempted, remote.Path, remote.Error)
	}
	if !unreachable(err) {
		// The server got the request; routing again here could speak twice.
		fmt.Fprintln(os.Stderr, "speak:", err)
		return 1
	}
	log.Debug().Err(err).Str("module", "speak").Msg("server routing unavailable, routing locally")

	session := domain.SessionName(*sess)
	if session == "" {
		session = detectSession(cfg.Detect)
	}
	router := app.NewTTSRouter(client, client, client, directSpeaker(cfg.TTS), cfg.TTS.DefaultVoice, cfg.API.ProbeTimeout)
	d := router.Speak(ctx, text, *voice, session)
	return report(d.Attempted, d.Path, d.Reason())
}

// unreachable reports whether err means the request never reached the
// server.
func unreachable(err error) bool {
	var se *apiclient.StatusError
	if errors.As(err, &se) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func report(attempted, path domain.RoutePath, reason string) int {
	if path == "" || path == domain.RouteNone {
		fmt.Fprintf(os.Stderr, "speak: %s failed: %s\n", attempted, reason)
		return 1
	}
	fmt.Println(path)
	return 0
}

// readText joins the arguments, or reads stdin when there are none.
func readText(args []string, stdin io.Reader) (string, error) {
	text := strings.Join(args, " ")
	if text == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", tts.ErrEmptyText
	}
	return text, nil
}

func detectSession(cfg config.DetectConfig) domain.SessionName {
	table, err := detect.NewProcTable(cfg.ProcMount)
	if err != nil {
		log.Debug().Err(err).Str("module", "speak").Msg("process table unavailable")
		return ""
	}
	name, ok := detect.New(table, cfg.TTL).Resolve(os.Getppid())
	if !ok {
		return ""
	}
	log.Debug().Str("module", "speak").Str("session", string(name)).Msg("session detected")
	return name
}

func directSpeaker(cfg config.TTSConfig) app.DirectSpeaker {
	synth, err := tts.New(cfg)
	if err != nil {
		log.Debug().Err(err).Str("module", "speak").Msg("no direct synthesis")
		return nil
	}
	return tts.NewLocalSpeaker(synth, tts.NewCommandPlayer(cfg.Player))
}
