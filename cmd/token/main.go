// Command token mints a bearer token for local use against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"neuroflash/internal/auth"
	"neuroflash/internal/config"
)

func main() {
	subject := flag.String("sub", "", "Owner id to place in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: token -sub <owner-id> [-ttl 24h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.NewManager(cfg.JWTSecret).Sign(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
