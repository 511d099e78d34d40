package main

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/boomhq/convlink/pkg/config"
	"github.com/boomhq/convlink/pkg/events"
	"github.com/boomhq/convlink/pkg/gateway"
	"github.com/boomhq/convlink/pkg/identifier"
	"github.com/boomhq/convlink/pkg/linktoken"
	"github.com/boomhq/convlink/pkg/resolve"
	"github.com/boomhq/convlink/pkg/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the redirector gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Settings) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Store.SQLiteDSN)
	if err != nil {
		return errors.Wrap(err, "open conversation store")
	}
	defer func() { _ = st.Close() }()

	var cache store.AliasCache
	if cfg.Store.RedisAddr != "" {
		cache = store.NewRedisAliasCache(cfg.Store.RedisAddr, "convlink", cfg.Store.CacheTTL())
		log.Info().Str("addr", cfg.Store.RedisAddr).Msg("alias cache on redis")
	} else {
		cache = store.NewMemoryAliasCache()
	}

	minter, err := buildMinter(cfg)
	if err != nil {
		return err
	}

	orch := buildOrchestrator(cfg, st, cache, minter)

	signer, keys, err := buildTokenStack(cfg)
	if err != nil {
		return err
	}
	verifier := linktoken.NewVerifier(keys, cfg.Token.Issuer, cfg.Token.Audience)

	bus, err := events.BuildBus(cfg.Events)
	if err != nil {
		return errors.Wrap(err, "build audit bus")
	}
	audit := events.NewPublisher(bus.Publisher)
	defer func() { _ = audit.Close() }()

	gw := gateway.New(orch, signer, verifier, keys, st, audit, gateway.Config{
		TargetHost:    cfg.Server.TargetHost,
		DashboardPath: cfg.Server.DashboardPath,
		LegacyPath:    cfg.Server.LegacyPath,
		TokenTTL:      cfg.Token.TTL(),
	})

	router := mux.NewRouter()
	gw.Routes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func buildMinter(cfg *config.Settings) (*identifier.Minter, error) {
	if cfg.Resolver.Namespace == "" {
		return identifier.NewMinter(identifier.DefaultNamespace), nil
	}
	ns, err := uuid.Parse(cfg.Resolver.Namespace)
	if err != nil {
		return nil, errors.Wrap(err, "parse minting namespace")
	}
	return identifier.NewMinter(ns), nil
}

func buildOrchestrator(cfg *config.Settings, st store.ConversationStore, cache store.AliasCache, minter *identifier.Minter) *resolve.Orchestrator {
	var prober resolve.Prober
	if cfg.Resolver.AllowProbe && cfg.Resolver.ProbeBaseURL != "" {
		prober = resolve.NewRedirectProber(cfg.Resolver.ProbeBaseURL, cfg.Resolver.ProbeTimeout())
	}
	chain := resolve.NewChain(st, cache, prober, minter, resolve.ChainOptions{
		AllowMint:  cfg.Resolver.AllowMint,
		AllowProbe: cfg.Resolver.AllowProbe,
	})

	internal := resolve.NewInternalClient(cfg.Internal.BaseURL, cfg.Internal.Secret, cfg.Internal.Timeout())
	retry := resolve.NewRetryPolicy(cfg.Internal.MaxAttempts, 0, 0)
	breaker := resolve.NewBreaker(cfg.Internal.BreakerThreshold, cfg.Internal.BreakerCooldown())

	return resolve.NewOrchestrator(internal, chain, retry, breaker, minter, resolve.OrchestratorOptions{
		HedgeDelay: cfg.Resolver.HedgeDelay(),
		AllowMint:  cfg.Resolver.AllowMint,
	})
}

// buildTokenStack assembles the signer and the verification key set. Both
// degrade gracefully: without a private key the gateway serves deep links
// instead of tokens, without any public key every token is rejected.
func buildTokenStack(cfg *config.Settings) (*linktoken.Signer, *linktoken.KeySet, error) {
	var priv ed25519.PrivateKey
	kid := cfg.Token.Kid
	if cfg.Token.PrivateKeyPEM != "" {
		var err error
		priv, err = linktoken.ParsePrivateKeyPEM(cfg.Token.PrivateKeyPEM)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse signing key")
		}
		if kid == "" {
			kid = linktoken.KidForPublicKey(priv.Public().(ed25519.PublicKey))
		}
	}
	signer := linktoken.NewSigner(priv, kid, cfg.Token.Issuer, cfg.Token.Audience)

	var source linktoken.KeySource
	if cfg.Token.JWKSURL != "" {
		source = linktoken.NewJWKSKeySource(cfg.Token.JWKSURL, 5*time.Second)
	} else {
		var pubs []linktoken.PublicKey
		if priv != nil {
			pub := priv.Public().(ed25519.PublicKey)
			pubs = append(pubs, linktoken.PublicKey{Kid: kid, Key: pub})
		}
		for _, pemText := range cfg.Token.PublicKeyPEMs {
			pub, err := linktoken.ParsePublicKeyPEM(pemText)
			if err != nil {
				return nil, nil, errors.Wrap(err, "parse verification key")
			}
			pubs = append(pubs, linktoken.PublicKey{Kid: linktoken.KidForPublicKey(pub), Key: pub})
		}
		source = linktoken.NewStaticKeySource(pubs...)
	}
	keys := linktoken.NewKeySet(source, cfg.Token.RefreshTTL())
	return signer, keys, nil
}
