// Command hermit-echo runs a hermit server that echoes application payloads
// back to the sender.
//
// This example shows how to:
//   - Load or generate a long-term server identity
//   - Accept secure sessions over TCP
//   - Serve concurrent sessions, each with its own keys and limits
//   - Capture protocol events to a CBOR file
//
// Usage:
//
//	go run ./cmd/hermit-echo -listen :7643
//
// On startup the server prints its public key; clients pin it via the
// -peer-key flag of hermit-client. Payloads larger than the server's send
// limit are echoed in chunks.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/hermit-proto/hermit-go/pkg/config"
	"github.com/hermit-proto/hermit-go/pkg/identity"
	"github.com/hermit-proto/hermit-go/pkg/lenlimit"
	hermitlog "github.com/hermit-proto/hermit-go/pkg/log"
	"github.com/hermit-proto/hermit-go/pkg/session"
)

var (
	listenAddr = flag.String("listen", ":7643", "Address to listen on")
	configPath = flag.String("config", "", "YAML configuration file path")
	seedHex    = flag.String("seed", "", "Ed25519 seed as 64 hex chars (generated if empty)")
	maxAccept  = flag.Int("max-accept", 0, "Cap on peer limit raise requests (0 = accept all in range)")
	logFile    = flag.String("log-file", "", "CBOR protocol event capture file")
	verbose    = flag.Bool("verbose", false, "Print protocol events to the console")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("Hermit Echo Server")
	log.Println("==================")

	cfg := loadConfig()

	keys, err := serverKeys(cfg)
	if err != nil {
		log.Fatalf("Failed to set up identity: %v", err)
	}
	log.Printf("Server public key: %s", hex.EncodeToString(keys.Public()))

	logger, closeLogger := buildLogger(cfg)
	defer closeLogger()

	opts := &session.Options{Logger: logger, Policy: acceptPolicy(cfg)}

	addr := *listenAddr
	if cfg != nil && cfg.Address != "" && addr == ":7643" {
		addr = cfg.Address
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}
	log.Printf("Listening on %s", ln.Addr())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept failed: %v", err)
			continue
		}
		go serve(conn, keys, opts)
	}
}

func loadConfig() *config.Config {
	if *configPath == "" {
		return nil
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func serverKeys(cfg *config.Config) (*identity.KeyPair, error) {
	if *seedHex != "" {
		seed, err := hex.DecodeString(*seedHex)
		if err != nil {
			return nil, err
		}
		return identity.FromSeed(seed)
	}
	if cfg != nil && cfg.Identity.Seed != "" {
		return cfg.SigningKeys()
	}
	log.Println("No seed configured, generating an ephemeral identity")
	return identity.Generate()
}

func acceptPolicy(cfg *config.Config) lenlimit.Policy {
	if *maxAccept > 0 {
		return lenlimit.AcceptUpTo(*maxAccept)
	}
	if cfg != nil {
		return cfg.AcceptPolicy()
	}
	return lenlimit.AcceptAll
}

func buildLogger(cfg *config.Config) (hermitlog.Logger, func()) {
	var loggers []hermitlog.Logger
	var closers []func()

	if *verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, hermitlog.NewSlogAdapter(slog.New(handler)))
	}

	capturePath := *logFile
	if capturePath == "" && cfg != nil {
		capturePath = cfg.Log.File
	}
	if capturePath != "" {
		fl, err := hermitlog.NewFileLogger(capturePath)
		if err != nil {
			log.Fatalf("Failed to open capture file: %v", err)
		}
		loggers = append(loggers, fl)
		closers = append(closers, func() { fl.Close() })
		log.Printf("Capturing protocol events to %s", capturePath)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(loggers) == 0 {
		return hermitlog.NoopLogger{}, closeAll
	}
	return hermitlog.NewMultiLogger(loggers...), closeAll
}

func serve(conn net.Conn, keys *identity.KeyPair, opts *session.Options) {
	remote := conn.RemoteAddr()

	sess, err := session.Accept(conn, keys, opts)
	if err != nil {
		log.Printf("[%s] Handshake failed: %v", remote, err)
		return
	}
	defer sess.Close()
	log.Printf("[%s] Session %s established", remote, sess.ID())

	for {
		payload, err := sess.Receive()
		if err != nil {
			if errors.Is(err, session.ErrClosedByPeer) {
				log.Printf("[%s] Peer closed the session", remote)
			} else {
				log.Printf("[%s] Session failed: %v", remote, err)
			}
			return
		}

		// The peer's raised send limit does not raise ours; echo large
		// payloads in chunks the current send limit allows.
		for len(payload) > 0 {
			chunk := payload
			if limit := sess.SendLimit(); len(chunk) > limit {
				chunk = chunk[:limit]
			}
			if err := sess.Send(chunk); err != nil {
				log.Printf("[%s] Echo failed: %v", remote, err)
				return
			}
			payload = payload[len(chunk):]
		}
	}
}
