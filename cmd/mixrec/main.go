// Command mixrec 对单个用户执行一次推荐（或对一组用户做留一评估），以 JSON 输出结果。
//
//	mixrec -config mixrec.yaml -user u1 -limit 12 -hour 19 -day 5
//	mixrec -config mixrec.yaml -evaluate u1,u2,u3 -k 10
//
// 使用内存后端时可以通过 -fixtures 载入目录、行为与收藏数据。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/mixrec/config"
	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/engine"
	"github.com/rushteam/mixrec/evaluation"
	"github.com/rushteam/mixrec/feast"
	"github.com/rushteam/mixrec/pkg/logging"
	"github.com/rushteam/mixrec/pkg/metrics"
	"github.com/rushteam/mixrec/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML settings file (optional)")
		userID     = flag.String("user", "", "user id to recommend for")
		limit      = flag.Int("limit", 0, "number of recommendations (default from settings)")
		hour       = flag.Int("hour", -1, "hour of day 0-23 (optional)")
		day        = flag.Int("day", -1, "day of week 0-6, 0 is Sunday (optional)")
		advanced   = flag.Bool("advanced", false, "use the 180 day profile window")
		fixtures   = flag.String("fixtures", "", "JSON fixtures loaded into the store before running")
		evaluate   = flag.String("evaluate", "", "comma separated user ids for holdout evaluation")
		k          = flag.Int("k", 10, "cutoff for holdout evaluation")
	)
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mixrec: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(logging.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Caller: settings.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, logger, options{
		userID:   *userID,
		limit:    *limit,
		hour:     *hour,
		day:      *day,
		advanced: *advanced,
		fixtures: *fixtures,
		evaluate: *evaluate,
		k:        *k,
	}); err != nil {
		logger.Error().Err(err).Msg("mixrec failed")
		os.Exit(1)
	}
}

type options struct {
	userID   string
	limit    int
	hour     int
	day      int
	advanced bool
	fixtures string
	evaluate string
	k        int
}

func run(ctx context.Context, s *config.Settings, logger zerolog.Logger, opts options) error {
	kv, err := openStore(ctx, s)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	adapter := store.NewProviderAdapter(kv, s.Store.KeyPrefix)
	if opts.fixtures != "" {
		if err := loadFixtures(ctx, adapter, opts.fixtures); err != nil {
			return err
		}
	}

	providers := adapter.Providers()
	if s.Feast.Enabled {
		client, err := feast.Dial(s.Feast.Endpoint, s.Feast.Project, feast.WithTimeout(s.Feast.Timeout))
		if err != nil {
			return fmt.Errorf("feast: %w", err)
		}
		defer func() { _ = client.Close() }()
		providers.Catalog = feast.NewItemStatsCatalog(providers.Catalog, client, s.Feast.Features, logger)
	}
	if s.Breaker.Enabled {
		providers = store.NewGuarded(providers, store.BreakerConfig{
			MaxRequests:      s.Breaker.MaxRequests,
			Interval:         s.Breaker.Interval,
			Timeout:          s.Breaker.Timeout,
			FailureThreshold: s.Breaker.FailureThreshold,
		}, logger).Providers()
	}

	if opts.evaluate != "" {
		ev := &evaluation.Evaluator{Providers: providers, Settings: s, K: opts.k, Logger: logger}
		report, err := ev.Run(ctx, splitUsers(opts.evaluate))
		if err != nil {
			return err
		}
		return printJSON(report)
	}

	if opts.userID == "" {
		return fmt.Errorf("-user or -evaluate is required")
	}
	e, err := engine.New(providers, engine.Options{
		Settings: s,
		Logger:   logger,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	})
	if err != nil {
		return err
	}
	req := engine.Request{UserID: opts.userID, Limit: opts.limit, Advanced: opts.advanced}
	if opts.hour >= 0 {
		req.Context.HourOfDay = &opts.hour
	}
	if opts.day >= 0 {
		req.Context.DayOfWeek = &opts.day
	}
	resp, err := e.Recommend(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func openStore(ctx context.Context, s *config.Settings) (core.KeyValueStore, error) {
	if s.Store.Backend != "redis" {
		return store.NewMemoryStore(), nil
	}
	r := s.Store.Redis
	rs, err := store.NewRedisStore(ctx, store.RedisConfig{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// fixtureFile 是 -fixtures 的文件格式。
type fixtureFile struct {
	Items      []*core.CatalogItem  `json:"items"`
	Events     []core.ActivityEvent `json:"events"`
	Favorites  []core.Favorite      `json:"favorites"`
	Exclusions []struct {
		UserID   string        `json:"user_id"`
		Category core.Category `json:"category"`
		ItemIDs  []string      `json:"item_ids"`
	} `json:"exclusions"`
}

func loadFixtures(ctx context.Context, a *store.ProviderAdapter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures: %w", err)
	}
	var f fixtureFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	for _, it := range f.Items {
		if err := a.PutItem(ctx, it); err != nil {
			return fmt.Errorf("put item %s: %w", it.Key(), err)
		}
	}
	for _, e := range f.Events {
		if err := a.RecordEvent(ctx, e); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
	}
	for _, fav := range f.Favorites {
		if err := a.PutFavorite(ctx, fav); err != nil {
			return fmt.Errorf("put favorite: %w", err)
		}
	}
	for _, ex := range f.Exclusions {
		if err := a.AddExclusions(ctx, ex.UserID, ex.Category, ex.ItemIDs...); err != nil {
			return fmt.Errorf("add exclusions: %w", err)
		}
	}
	return nil
}

func splitUsers(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
