package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/auth"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/validator"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
)

type searchArgs struct {
	corpus  string
	config  string
	query   string
	caller  string
	request validator.Request
	asJSON  bool
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}
	return runSearch(c.Context, c.App.Writer, searchArgs{
		corpus: c.String("corpus"),
		config: c.String("config"),
		query:  query,
		caller: c.String("caller"),
		request: validator.Request{
			Query:      query,
			SearchType: c.String("type"),
			FilterType: c.String("filter"),
			SortBy:     c.String("sort"),
			MaxResults: fmt.Sprint(c.Int("max")),
			Offset:     fmt.Sprint(c.Int("offset")),
			Since:      c.String("since"),
		},
		asJSON: c.Bool("json"),
	})
}

func runSearch(ctx context.Context, w io.Writer, args searchArgs) error {
	cfg := config.Default()
	if args.config != "" {
		var err error
		if cfg, err = config.Load(args.config); err != nil {
			return err
		}
	}

	source, err := indexer.LoadJSONFile(args.corpus)
	if err != nil {
		return err
	}
	idx := index.New(index.WithWorkers(cfg.Index.BuildWorkers))
	engine := indexer.NewEngine(idx, source, cfg.Index)
	defer engine.Shutdown()
	stats, err := engine.Rebuild(ctx)
	if err != nil {
		return err
	}

	opts, err := validator.Parse(args.request, cfg.Search)
	if err != nil {
		return err
	}
	svc := searcher.New(idx, enhancer.New(), executor.New(cfg.Search), auth.VisibilityFilter, cfg.Search)
	resp, err := svc.Search(ctx, args.query, opts, args.caller)
	if err != nil {
		return err
	}

	if args.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "%d result(s) from %d indexed documents, intent %s (%s), %dms\n",
		resp.TotalResults, stats.Indexed, resp.Metadata.Intent, resp.Metadata.IntentSource, resp.SearchTimeMs)
	if stats.Truncated {
		fmt.Fprintf(w, "warning: corpus exceeds index.buildLimit (%d); older documents were not indexed\n", cfg.Index.BuildLimit)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tTEXT\tSEMANTIC\tID\tTITLE")
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%.3f\t%.3f\t%.3f\t%s\t%s\n", r.RelevanceScore, r.TextScore, r.SemanticScore, r.ID, r.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(w, "related: %s\n", strings.Join(resp.Suggestions, ", "))
	}
	return nil
}

func tokenCommand(c *cli.Context) error {
	secret := c.String("secret")
	if secret == "" {
		return errors.New("a signing secret is required (--secret or SP_AUTH_JWT_SECRET)")
	}
	token, err := auth.NewTokens(secret).Issue(c.String("caller"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, token)
	return err
}
