package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/katanaid/katana/adapters/accounts"
	"github.com/katanaid/katana/adapters/events"
	"github.com/katanaid/katana/adapters/registry"
	"github.com/katanaid/katana/adapters/reputation"
	"github.com/katanaid/katana/adapters/store"
	"github.com/katanaid/katana/adapters/tokenizer"
	"github.com/katanaid/katana/config"
	"github.com/katanaid/katana/ports"
	"github.com/katanaid/katana/service"
	"github.com/katanaid/katana/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	signKey, err := loadSigningKey(cfg.SigningKeyPEM)
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}

	var (
		sessionStore ports.SessionStore
		tokenLedger  ports.TokenLedger
		fpRegistry   ports.FingerprintRegistry
		accountStore ports.AccountStore
		publisher    message.Publisher
	)

	logger := watermill.NewStdLogger(false, false)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}

		sessionStore = store.NewRedisSessionStore(redisClient)
		tokenLedger = store.NewRedisTokenLedger(redisClient)
		fpRegistry = registry.NewRedisRegistry(redisClient)
	} else {
		log.Println("No Redis URL configured, using in-memory stores")
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
		sessionStore = store.NewMemorySessionStore()
		tokenLedger = store.NewMemoryTokenLedger()
		fpRegistry = registry.NewMemoryRegistry()
	}

	accountStore = accounts.NewMemoryAccountStore()

	if cfg.PostgresDSN != "" {
		db, err := sqlx.Connect("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pgRegistry := registry.NewPostgresRegistry(db)
		if err := pgRegistry.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure sightings schema: %v", err)
		}
		fpRegistry = pgRegistry

		pgAccounts := accounts.NewPostgresAccountStore(db)
		if err := pgAccounts.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure accounts schema: %v", err)
		}
		accountStore = pgAccounts
	}

	var repProvider ports.ReputationProvider
	if cfg.ReputationURL != "" {
		repProvider = reputation.NewHTTPProvider(cfg.ReputationURL, cfg.ReputationTimeout)
	} else {
		repProvider = reputation.NewStaticProvider(1.0)
	}

	jwtTokenizer := tokenizer.NewJWTTokenizer(signKey, tokenizer.WithValidity(cfg.TokenValidity))
	eventPub := events.NewWatermillPublisher(publisher)

	captchaService := service.NewCaptchaService(sessionStore, jwtTokenizer, eventPub, service.GestureConfig{
		SessionTTL:        cfg.SessionTTL,
		AngleToleranceDeg: cfg.AngleToleranceDeg,
		MinDurationMS:     cfg.MinDurationMS,
		MaxDurationMS:     cfg.MaxDurationMS,
		MinPointCount:     cfg.MinPointCount,
		MinStrokeLength:   cfg.MinStrokeLength,
	})

	scoringCfg := service.DefaultScoringConfig()
	scoringCfg.Weights = service.Weights{
		Fingerprint:    cfg.WeightFingerprint,
		IPReputation:   cfg.WeightIPReputation,
		EmailPattern:   cfg.WeightEmailPattern,
		BrowserSignals: cfg.WeightBrowserSignals,
	}
	scoringCfg.AllowThreshold = cfg.AllowThreshold
	scoringCfg.CaptchaThreshold = cfg.CaptchaThreshold
	scoringCfg.DistinctWindow = cfg.DistinctWindow
	scoringCfg.VelocityWindow = cfg.VelocityWindow
	scoringCfg.VelocityThreshold = cfg.VelocityThreshold
	scoringCfg.ReputationTimeout = cfg.ReputationTimeout

	trustService := service.NewTrustService(fpRegistry, repProvider, eventPub, scoringCfg)
	signupService := service.NewSignupService(jwtTokenizer, tokenLedger, accountStore)

	handlers := http.NewHandlers(captchaService, trustService, signupService)
	router := http.SetupRouter(handlers, http.RouterConfig{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	log.Printf("Listening on %s", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadSigningKey parses the configured PEM key, or generates an ephemeral one.
// Ephemeral keys invalidate outstanding tokens on restart, which is acceptable
// for single-node development but not for production.
func loadSigningKey(pemData string) (*ecdsa.PrivateKey, error) {
	if pemData == "" {
		log.Println("No signing key configured, generating an ephemeral one")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in signing key")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key is not an ECDSA key")
		}
		return ecKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
