package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/tanpawarit/kirana-assistant/agent/agents/assistant"
	"github.com/tanpawarit/kirana-assistant/agent/agents/resolver"
	executorx "github.com/tanpawarit/kirana-assistant/agent/executor"
	"github.com/tanpawarit/kirana-assistant/agent/grounding"
	llmx "github.com/tanpawarit/kirana-assistant/agent/llm"
	"github.com/tanpawarit/kirana-assistant/agent/translate"
	"github.com/tanpawarit/kirana-assistant/agent/vision"
	"github.com/tanpawarit/kirana-assistant/api"
	configx "github.com/tanpawarit/kirana-assistant/pkg/config"
	"github.com/tanpawarit/kirana-assistant/pkg/database"
	openrouterx "github.com/tanpawarit/kirana-assistant/pkg/openrouter"
	"github.com/tanpawarit/kirana-assistant/pkg/upstash"
	"github.com/tanpawarit/kirana-assistant/speech"
	"github.com/tanpawarit/kirana-assistant/store"
)

type AppConfig struct {
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8000"`
	TimeZone            string        `split_words:"true" default:"Asia/Kolkata"`
	SeedOnStart         bool          `split_words:"true" default:"true"`
	ShutdownTimeout     time.Duration `split_words:"true" default:"10s"`
	TranslationCacheTTL time.Duration `split_words:"true" default:"720h"`
}

func (c *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.TimeZone))
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// TTSConfig configures speech synthesis. Leaving the API key empty disables
// the speech routes.
type TTSConfig struct {
	BaseURL      string            `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey       string            `envconfig:"API_KEY" split_words:"true"`
	Model        string            `split_words:"true" default:"gpt-4o-mini-tts"`
	DefaultVoice string            `split_words:"true" default:"alloy"`
	Voices       map[string]string `default:"en:alloy,hi:nova,te:shimmer,ta:shimmer,kn:coral,ml:coral,mr:nova,gu:nova,bn:sage,pa:ash"`
	Timeout      time.Duration     `split_words:"true" default:"30s"`
	CacheDir     string            `split_words:"true" default:"./tts_cache"`
	CacheMaxMB   int64             `split_words:"true" default:"100"`
	CacheTTL     time.Duration     `split_words:"true" default:"24h"`
}

func openStore(ctx context.Context, loc *time.Location) (*store.Store, error) {
	dbCfg, err := configx.New[database.Config]("DB")
	if err != nil {
		return nil, err
	}
	db, err := database.Open(*dbCfg)
	if err != nil {
		return nil, err
	}

	s := store.New(db)
	initCtx, cancel := context.WithTimeout(ctx, dbCfg.Timeout)
	defer cancel()
	if err := s.Init(initCtx); err != nil {
		_ = s.Close()
		return nil, err
	}
	log.Info().Str("driver", dbCfg.Driver).Str("tz", loc.String()).Msg("store ready")
	return s, nil
}

func seed(ctx context.Context) error {
	appCfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return err
	}
	loc, err := appCfg.Location()
	if err != nil {
		return err
	}
	s, err := openStore(ctx, loc)
	if err != nil {
		return err
	}
	defer s.Close()

	seeded, err := s.Seed(ctx)
	if err != nil {
		return err
	}
	log.Info().Bool("seeded", seeded).Int("products", len(store.DefaultProducts)).Msg("seed finished")
	return nil
}

func serve(ctx context.Context) error {
	appCfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return err
	}
	loc, err := appCfg.Location()
	if err != nil {
		return err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return err
	}
	ttsCfg, err := configx.New[TTSConfig]("TTS")
	if err != nil {
		return err
	}
	upstashCfg, err := configx.New[upstash.Config]("UPSTASH")
	if err != nil {
		return err
	}

	s, err := openStore(ctx, loc)
	if err != nil {
		return err
	}
	defer s.Close()

	if appCfg.SeedOnStart {
		if seeded, err := s.Seed(ctx); err != nil {
			return err
		} else if seeded {
			log.Info().Msg("seeded default products")
		}
	}

	models, err := resolver.NewRegistry(ctx, *llmCfg)
	if err != nil {
		return err
	}

	execOpts := []executorx.Option{executorx.WithLocation(loc)}
	if p := models.Phraser(); p != nil {
		execOpts = append(execOpts, executorx.WithPhraser(p))
	}
	chat, err := assistant.New(
		grounding.New(s, grounding.WithLocation(loc)),
		models.Resolver(),
		executorx.New(s, execOpts...),
	)
	if err != nil {
		return err
	}

	translator, err := translate.New(ctx, models.TranslateModel(), models.Prompts().Translate,
		translate.WithCache(translationCache(*upstashCfg, appCfg.TranslationCacheTTL)),
		translate.WithTimeout(llmCfg.Timeout),
	)
	if err != nil {
		return err
	}
	analyzer, err := vision.New(ctx, models.VisionModel(), models.Prompts(), vision.WithTimeout(2*llmCfg.Timeout))
	if err != nil {
		return err
	}

	deps := api.Deps{
		Chat:       chat,
		Inventory:  s,
		Vision:     analyzer,
		Translator: translator,
	}

	var ttsCache *speech.FileCache
	if strings.TrimSpace(ttsCfg.APIKey) != "" {
		var speaker *speech.Service
		speaker, ttsCache, err = newSpeech(*ttsCfg)
		if err != nil {
			return err
		}
		deps.Speech = speaker
	} else {
		log.Warn().Msg("TTS_API_KEY not set, speech routes disabled")
	}

	srv := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           api.New(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if ttsCache != nil {
		p.Go(func(ctx context.Context) error {
			if err := ttsCache.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("tts cache watcher stopped")
			}
			return nil
		})
	}
	return p.Wait()
}

func newSpeech(cfg TTSConfig) (*speech.Service, *speech.FileCache, error) {
	cache, err := speech.OpenCache(speech.CacheConfig{
		Dir:      cfg.CacheDir,
		MaxBytes: cfg.CacheMaxMB << 20,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	client := openrouterx.NewClient(openrouterx.ClientConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	synth, err := speech.NewOpenAISynthesizer(client, cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	svc, err := speech.NewService(cache, synth, cfg.Voices, cfg.DefaultVoice)
	if err != nil {
		return nil, nil, err
	}
	return svc, cache, nil
}

func translationCache(cfg upstash.Config, ttl time.Duration) translate.Cache {
	if !cfg.Enabled() {
		return translate.NewMemoryCache()
	}
	client, err := upstash.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("upstash disabled, using in-memory translation cache")
		return translate.NewMemoryCache()
	}
	return translate.NewUpstashCache(client, ttl, func(ctx context.Context, op string, err error) {
		log.Ctx(ctx).Warn().Err(err).Str("op", op).Msg("translation cache")
	})
}
