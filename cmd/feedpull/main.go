// Command feedpull drains the mandate and invoice change feeds once and
// exits. Useful for cron-style deployments that do not run the daemon.
package main

import (
	"context"
	"log"
	"os"

	"github.com/dverhagen/twikeysync/internal/server"
	"github.com/dverhagen/twikeysync/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.RunMigrations(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.PullFeeds(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
