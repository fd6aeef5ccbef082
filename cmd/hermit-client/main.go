// Command hermit-client connects to a hermit server and relays lines from
// stdin over the secure session.
//
// This example shows how to:
//   - Pin a server's public key and establish a session
//   - Raise the send limit after establishment
//   - Send and receive concurrently
//
// Usage:
//
//	go run ./cmd/hermit-client -connect localhost:7643 -peer-key <hex>
//
// Each stdin line is sent as one payload; received payloads are printed to
// stdout. EOF on stdin closes the session.
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"

	"github.com/hermit-proto/hermit-go/pkg/config"
	"github.com/hermit-proto/hermit-go/pkg/identity"
	hermitlog "github.com/hermit-proto/hermit-go/pkg/log"
	"github.com/hermit-proto/hermit-go/pkg/session"
)

var (
	connectAddr  = flag.String("connect", "localhost:7643", "Server address to connect to")
	configPath   = flag.String("config", "", "YAML configuration file path")
	peerKeyHex   = flag.String("peer-key", "", "Pinned server public key as 64 hex chars")
	requestLimit = flag.Int("request-limit", 0, "Send limit to request after establishment (0 = keep default)")
	logFile      = flag.String("log-file", "", "CBOR protocol event capture file")
	verbose      = flag.Bool("verbose", false, "Print protocol events to the console")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	pinned, err := pinnedPeer(cfg)
	if err != nil {
		log.Fatalf("Failed to set up pinned peer key: %v", err)
	}

	logger, closeLogger := buildLogger(cfg)
	defer closeLogger()

	addr := *connectAddr
	if cfg != nil && cfg.Address != "" && addr == "localhost:7643" {
		addr = cfg.Address
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}

	sess, err := session.Connect(conn, pinned, &session.Options{Logger: logger})
	if err != nil {
		log.Fatalf("Handshake failed: %v", err)
	}
	defer sess.Close()
	log.Printf("Session %s established with %s", sess.ID(), addr)

	limit := *requestLimit
	if limit == 0 && cfg != nil {
		limit = cfg.Limits.Request
	}
	if limit > 0 {
		if err := sess.RequestSendLimit(limit); err != nil {
			log.Fatalf("Failed to request send limit %d: %v", limit, err)
		}
		log.Printf("Requested send limit %d (applied once the server responds)", limit)
	}

	// Single receiver; dispatches control messages and prints payloads.
	recvDone := make(chan error, 1)
	go func() {
		for {
			payload, err := sess.Receive()
			if err != nil {
				recvDone <- err
				return
			}
			fmt.Printf("< %s\n", payload)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 128*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := sess.Send(line); err != nil {
			log.Printf("Send failed: %v", err)
			break
		}
		log.Printf("> sent %d bytes (send limit %d)", len(line), sess.SendLimit())
	}
	if err := scanner.Err(); err != nil {
		log.Printf("stdin error: %v", err)
	}

	sess.Close()
	if err := <-recvDone; err != nil &&
		!errors.Is(err, session.ErrSessionClosed) && !errors.Is(err, session.ErrClosedByPeer) {
		log.Printf("Session ended: %v", err)
	}
	log.Println("Goodbye!")
}

func pinnedPeer(cfg *config.Config) (identity.PeerIdentity, error) {
	if *peerKeyHex != "" {
		key, err := hex.DecodeString(*peerKeyHex)
		if err != nil {
			return identity.PeerIdentity{}, err
		}
		return identity.NewPeerIdentity(key)
	}
	if cfg != nil && cfg.Identity.PeerKey != "" {
		return cfg.PinnedPeer()
	}
	return identity.PeerIdentity{}, errors.New("no pinned peer key: set -peer-key or identity.peer_key")
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
