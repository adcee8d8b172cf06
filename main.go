package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mailgram/mailgram/config"
	"github.com/mailgram/mailgram/internal/database"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/server"
)

func main() {
	app := &cli.App{
		Name:  "mailgram",
		Usage: "IMAP mailbox supervision and Telegram delivery service",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "run database migrations and exit",
				Action: func(c *cli.Context) error {
					cfg, err := config.InitConfig()
					if err != nil {
						return err
					}
					db, err := database.NewConnection(cfg.DatabaseConfig)
					if err != nil {
						return err
					}
					return repository.MigrateDB(db)
				},
			},
			{
				Name:  "server",
				Usage: "start the API server and mailbox workers",
				Action: func(c *cli.Context) error {
					cfg, err := config.InitConfig()
					if err != nil {
						return err
					}
					db, err := database.NewConnection(cfg.DatabaseConfig)
					if err != nil {
						return err
					}
					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return err
					}
					return srv.Run()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
