// authcore-migrate applies the identity schema to the Postgres database named by DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/MrEthical07/authcore/envconfig"
	"github.com/MrEthical07/authcore/identity/postgres"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	settings, err := envconfig.LoadFile(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if settings.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or export DATABASE_URL")
		os.Exit(1)
	}

	if err := postgres.Migrate(settings.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
