package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thomiceli/gistapi/internal/config"
	"github.com/thomiceli/gistapi/internal/search"
	"github.com/thomiceli/gistapi/internal/upstream"
	"github.com/thomiceli/gistapi/internal/web/server"
	"github.com/urfave/cli/v2"
)

var CmdVersion = cli.Command{
	Name:  "version",
	Usage: "Print the version of Gistapi",
	Action: func(c *cli.Context) error {
		fmt.Println("Gistapi " + config.GistapiVersion)
		return nil
	},
}

var CmdStart = cli.Command{
	Name:  "start",
	Usage: "Start Gistapi server",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "shutdown-timeout",
			Usage: "Time given to in-flight searches when stopping",
			Value: 10 * time.Second,
		},
	},
	Action: func(ctx *cli.Context) error {
		fmt.Println("Gistapi " + config.GistapiVersion)

		cfg, client, err := initialize(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		s := server.NewServer(cfg, newSearcher(cfg, client))
		go s.Start()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		s.Stop(ctx.Duration("shutdown-timeout"))
		return nil
	},
}

var CmdSearch = cli.Command{
	Name:  "search",
	Usage: "Search the public gists of a user and print the result",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "username",
			Aliases:  []string{"u"},
			Usage:    "GitHub username",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pattern",
			Aliases:  []string{"p"},
			Usage:    "Regular expression matched at the start of each string",
			Required: true,
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, client, err := initialize(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := newSearcher(cfg, client).Search(sigCtx, search.Request{
			Username: ctx.String("username"),
			Pattern:  ctx.String("pattern"),
		})
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		enc := json.NewEncoder(ctx.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var ConfigFlag = cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to a config file in YAML format",
}

func App() error {
	app := cli.NewApp()
	app.Name = "Gistapi"
	app.Usage = "Search the public gists of a GitHub user."
	app.HelpName = "gistapi"

	app.Commands = []*cli.Command{&CmdVersion, &CmdStart, &CmdSearch}
	app.DefaultCommand = CmdStart.Name
	app.Flags = []cli.Flag{
		&ConfigFlag,
	}
	return app.Run(os.Args)
}

func initialize(ctx *cli.Context) (*config.Config, *upstream.Client, error) {
	cfg, err := config.Load(ctx.String("config"), os.Stderr)
	if err != nil {
		return nil, nil, cli.Exit("Failed to load config: "+err.Error(), 1)
	}
	config.InitLog(cfg)

	log.Info().Str("api-url", cfg.GithubApiUrl).Bool("accumulate", cfg.SearchAccumulate).Int("concurrency", cfg.SearchConcurrency).Msg("Gist API configured")

	client, err := upstream.NewClientFromConfig(cfg)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	return cfg, client, nil
}

func newSearcher(cfg *config.Config, client *upstream.Client) *search.Searcher {
	return search.NewSearcher(client, search.Options{
		Accumulate:  cfg.SearchAccumulate,
		Concurrency: cfg.SearchConcurrency,
	})
}
