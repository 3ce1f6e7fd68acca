// Command vertoclient runs the Verto signaling engine standalone: it
// registers with the gateway, places or accepts calls issued over a
// minimal stdin command line, and logs every event. It doubles as a
// Windows/Linux background service via github.com/kardianos/service,
// mirroring thatcooperguy-nvremote's cmd/agent entrypoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kardianos/service"

	"github.com/patrickfdsouzapl/vertoclient/internal/call"
	"github.com/patrickfdsouzapl/vertoclient/internal/config"
	"github.com/patrickfdsouzapl/vertoclient/internal/events"
	"github.com/patrickfdsouzapl/vertoclient/internal/netcheck"
	"github.com/patrickfdsouzapl/vertoclient/internal/pionpeer"
	"github.com/patrickfdsouzapl/vertoclient/internal/session"
	"github.com/patrickfdsouzapl/vertoclient/internal/supervisor"
)

const (
	serviceName        = "VertoClient"
	serviceDisplayName = "Verto Signaling Client"
	serviceDescription = "Maintains a persistent Verto/SIP-over-WebSocket registration and signals calls"
)

// daemon implements kardianos/service.Interface for service lifecycle.
type daemon struct {
	serverCfg config.TxServerConfiguration
	creds     config.CredentialSource
	cancel    context.CancelFunc
}

func (d *daemon) Start(s service.Service) error {
	go d.run()
	return nil
}

func (d *daemon) Stop(s service.Service) error {
	slog.Info("service stop requested")
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

func (d *daemon) run() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	defer cancel()

	if err := runClient(ctx, d.serverCfg, d.creds); err != nil {
		slog.Error("vertoclient exited with error", "error", err)
		os.Exit(1)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		doInstall   = flag.Bool("install", false, "install as a background service")
		doUninstall = flag.Bool("uninstall", false, "uninstall the background service")
		doRun       = flag.Bool("run", false, "run in the foreground (non-service mode)")
	)
	flag.Parse()

	initLogger(string(config.LogInfo))

	serverCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	creds := loadCredentialsFromEnv()
	if creds != nil {
		if err := config.Validate(creds); err != nil {
			slog.Error("invalid credentials", "error", err)
			os.Exit(1)
		}
	}

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
	}
	d := &daemon{serverCfg: serverCfg, creds: creds}
	svc, err := service.New(d, svcConfig)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	switch {
	case *doInstall:
		if err := svc.Install(); err != nil {
			slog.Error("failed to install service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service installed:", serviceName)

	case *doUninstall:
		_ = svc.Stop()
		if err := svc.Uninstall(); err != nil {
			slog.Error("failed to uninstall service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service uninstalled:", serviceName)

	case *doRun, service.Interactive():
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := runClient(ctx, serverCfg, creds); err != nil {
			slog.Error("vertoclient exited with error", "error", err)
			os.Exit(1)
		}

	default:
		if err := svc.Run(); err != nil {
			slog.Error("service run failed", "error", err)
			os.Exit(1)
		}
	}
}

// runClient wires a Session and ConnectionSupervisor together, starts the
// stdin command loop, and blocks until ctx is cancelled.
func runClient(ctx context.Context, serverCfg config.TxServerConfiguration, creds config.CredentialSource) error {
	sink := loggingSink()

	probeAddr := serverCfg.Host + ":" + strconv.Itoa(serverCfg.Port)
	poller := netcheck.NewPoller(probeAddr, 10*time.Second)
	defer poller.Stop()

	sess := session.New(session.Options{
		ServerConfig:   serverCfg,
		Sink:           sink,
		NetworkChecker: func() bool { return netcheck.Probe(probeAddr) },
		PeerFactory:    pionpeer.NewFactory(),
	})

	switch c := creds.(type) {
	case config.CredentialConfig:
		sess.CredentialLogin(c)
	case config.TokenConfig:
		sess.TokenLogin(c)
	default:
		slog.Warn("vertoclient: no credentials configured, will not log in")
	}

	sv := supervisor.New(sess, poller)
	if err := sv.Start(ctx); err != nil {
		slog.Warn("initial connect failed, relying on supervisor to retry", "error", err)
	}

	go runCommandLoop(ctx, sess)

	<-ctx.Done()
	slog.Info("shutting down")
	sv.Stop()
	sess.Disconnect()
	return nil
}

// runCommandLoop reads whitespace-separated commands from stdin until ctx
// is cancelled or stdin closes. It is the "minimal stdin command line"
// this binary offers in place of a UI: enough to drive the engine through
// a full call by hand when running interactively.
//
//	call <destinationNumber>
//	accept <callId>
//	bye <callId>
//	hold <callId> | unhold <callId>
//	mute <callId> | unmute <callId>
//	dtmf <callId> <digits>
func runCommandLoop(ctx context.Context, sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			dispatchCommand(sess, line)
		}
	}
}

func dispatchCommand(sess *session.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "call":
		if len(args) < 1 {
			fmt.Println("usage: call <destinationNumber>")
			return
		}
		c, err := sess.PlaceCall(call.InviteRequest{DestinationNumber: args[0]})
		if err != nil {
			slog.Warn("call failed", "error", err)
			return
		}
		fmt.Println("placed call", c.ID)

	case "accept":
		withCallID(sess, args, "accept <callId>", func(id uuid.UUID) {
			if err := sess.AcceptCall(id); err != nil {
				slog.Warn("accept failed", "error", err)
			}
		})

	case "bye":
		withCallID(sess, args, "bye <callId>", func(id uuid.UUID) {
			if err := sess.EndCall(id, call.CauseUserBusy); err != nil {
				slog.Warn("bye failed", "error", err)
			}
		})

	case "hold", "unhold":
		withCallID(sess, args, cmd+" <callId>", func(id uuid.UUID) {
			c, ok := sess.Calls().Get(id)
			if !ok {
				slog.Warn("hold/unhold: unknown call", "callId", id)
				return
			}
			if err := c.SetHold(cmd == "hold"); err != nil {
				slog.Warn("hold/unhold failed", "error", err)
			}
		})

	case "mute", "unmute":
		withCallID(sess, args, cmd+" <callId>", func(id uuid.UUID) {
			c, ok := sess.Calls().Get(id)
			if !ok {
				slog.Warn("mute: unknown call", "callId", id)
				return
			}
			c.SetMuted(cmd == "mute")
		})

	case "dtmf":
		if len(args) < 2 {
			fmt.Println("usage: dtmf <callId> <digits>")
			return
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			fmt.Println("invalid callId:", args[0])
			return
		}
		c, ok := sess.Calls().Get(id)
		if !ok {
			slog.Warn("dtmf: unknown call", "callId", id)
			return
		}
		if err := c.SendDTMF(args[1]); err != nil {
			slog.Warn("dtmf failed", "error", err)
		}

	default:
		fmt.Println("unrecognized command:", cmd)
	}
}

func withCallID(sess *session.Session, args []string, usage string, fn func(uuid.UUID)) {
	if len(args) < 1 {
		fmt.Println("usage:", usage)
		return
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Println("invalid callId:", args[0])
		return
	}
	fn(id)
}

// loggingSink logs every engine event at Info, and surfaces errors at
// Warn, so running the binary with no UI attached still shows progress.
func loggingSink() events.Sink {
	return func(e events.Event) {
		if e.Kind == events.KindError {
			slog.Warn("event", "kind", e.Kind.String(), "message", e.Message)
			return
		}
		slog.Info("event", "kind", e.Kind.String(), "callId", e.CallID, "sessionId", e.SessionID)
	}
}

// loadCredentialsFromEnv builds a CredentialSource from environment
// variables, preferring a token login (VERTO_SIP_TOKEN) over a
// user/password pair (VERTO_SIP_USER/VERTO_SIP_PASSWORD) when both are
// set.
func loadCredentialsFromEnv() config.CredentialSource {
	if token := os.Getenv("VERTO_SIP_TOKEN"); token != "" {
		return config.TokenConfig{
			SIPToken:          token,
			SIPCallerIDName:   os.Getenv("VERTO_CALLER_ID_NAME"),
			SIPCallerIDNumber: os.Getenv("VERTO_CALLER_ID_NUMBER"),
			LogLevel:          config.LogInfo,
		}
	}
	if user := os.Getenv("VERTO_SIP_USER"); user != "" {
		return config.CredentialConfig{
			SIPUser:           user,
			SIPPassword:       os.Getenv("VERTO_SIP_PASSWORD"),
			SIPCallerIDName:   os.Getenv("VERTO_CALLER_ID_NAME"),
			SIPCallerIDNumber: os.Getenv("VERTO_CALLER_ID_NUMBER"),
			LogLevel:          config.LogInfo,
		}
	}
	return nil
}

func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case string(config.LogDebug), string(config.LogVerbose):
		lvl = slog.LevelDebug
	case string(config.LogWarning):
		lvl = slog.LevelWarn
	case string(config.LogError):
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
