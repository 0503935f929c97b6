package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/postgres"
)

// withPublisher connects to Postgres and Kafka from the config file and
// hands fn a ready publisher.
func withPublisher(ctx context.Context, configPath string, fn func(*ingestion.Publisher) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New("kafka.enabled is false; change events would never reach the search service")
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := indexer.NewPostgresSource(db).EnsureSchema(ctx); err != nil {
		return err
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentChanges)
	defer producer.Close()

	return fn(ingestion.New(ingestion.NewPostgresStore(db), producer))
}

func publishCommand(c *cli.Context) error {
	source, err := indexer.LoadJSONFile(c.String("corpus"))
	if err != nil {
		return err
	}
	docs, err := source.ListVisibleDocuments(c.Context, 0)
	if err != nil {
		return err
	}
	return withPublisher(c.Context, c.String("config"), func(p *ingestion.Publisher) error {
		return publishAll(c.Context, c.App.Writer, p, docs)
	})
}

func publishAll(ctx context.Context, w io.Writer, p *ingestion.Publisher, docs []document.Document) error {
	var created, updated, failed int
	for _, doc := range docs {
		op, err := p.Put(ctx, doc)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", doc.ID, err)
			continue
		}
		if op == document.OpCreate {
			created++
		} else {
			updated++
		}
	}
	fmt.Fprintf(w, "created %d, updated %d, failed %d\n", created, updated, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one document id is required")
	}
	return withPublisher(c.Context, c.String("config"), func(p *ingestion.Publisher) error {
		var errs []error
		for _, id := range ids {
			if err := p.Delete(c.Context, id); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
		}
		return errors.Join(errs...)
	})
}
