package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/logging"
	"github.com/dialup-inc/photobooth/server"
)

func main() {
	var (
		addr  = flag.String("addr", ":3000", "address to accept uploads on")
		dir   = flag.String("dir", "uploads", "directory uploads are stored in")
		token = flag.String("token", "euruko_isight", "auth_token booths must send; empty accepts any")
	)
	flag.Parse()

	log := logging.Console(os.Stderr, zerolog.InfoLevel)

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("upload dir")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           &server.Collector{Dir: *dir, Token: *token, Log: log},
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", *addr).Str("dir", *dir).Msg("collecting pictures")
	log.Fatal().Err(srv.ListenAndServe()).Msg("collector stopped")
}
