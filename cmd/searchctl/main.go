// Command searchctl is the operator CLI for the search engine. It runs
// searches against a local JSON corpus, seeds the document store, and mints
// caller tokens for testing the HTTP API.
package main

import (
	"log"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "searchctl",
		Usage: "Query a document corpus and manage caller tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Run a hybrid search over a JSON corpus file",
				ArgsUsage: "<query>",
				Description: heredoc.Doc(`
					Builds an in-memory index from --corpus (a JSON array of documents)
					and runs one query through the same pipeline the service uses.

					Examples:
					  searchctl search --corpus docs.json --caller alice "budget report"
					  searchctl search --corpus docs.json --type semantic --json "finance"
				`),
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "corpus",
						Aliases:  []string{"c"},
						Usage:    "Path to a JSON array of documents",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "Optional service config file for search limits and boosts",
					},
					&cli.StringFlag{
						Name:  "caller",
						Usage: "Caller id the permission filter evaluates",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Search type (text, semantic, hybrid)",
						Value: "hybrid",
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Filter type (all, auto, or a document kind)",
						Value: "all",
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort order (relevance, date)",
						Value: "relevance",
					},
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum results to return",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Results to skip",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "Only documents created at or after this date",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full response as JSON",
					},
				},
			},
			{
				Name:  "publish",
				Usage: "Store a JSON corpus in Postgres and announce each document on Kafka",
				Description: heredoc.Doc(`
					Upserts every document from --corpus into the documents table and
					publishes a create or update event on kafka.topics.documentChanges,
					so running search services index them without a rebuild.

					Example:
					  searchctl publish --config configs/development.yaml --corpus docs.json
				`),
				Action: publishCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "corpus",
						Aliases:  []string{"c"},
						Usage:    "Path to a JSON array of documents",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "Service config file with postgres and kafka settings",
						Value: "configs/development.yaml",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Soft-delete documents and announce the removals on Kafka",
				ArgsUsage: "<id>...",
				Action:    deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Service config file with postgres and kafka settings",
						Value: "configs/development.yaml",
					},
				},
			},
			{
				Name:  "token",
				Usage: "Mint a bearer token for a caller",
				Description: heredoc.Doc(`
					Prints an HS256 JWT whose subject is --caller, signed with the
					service's auth.jwtSecret.

					Example:
					  curl -H "Authorization: Bearer $(searchctl token --caller alice)" \
					    "localhost:8080/api/v1/search?q=budget"
				`),
				Action: tokenCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "caller",
						Usage:    "Caller id to embed as the token subject",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "secret",
						Usage:   "Signing secret",
						EnvVars: []string{"SP_AUTH_JWT_SECRET"},
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime (0 for no expiry)",
						Value: 24 * time.Hour,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
