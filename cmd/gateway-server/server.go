package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/config"
	"github.com/bcgov/healthgateway-sub024/internal/domain/clinicaldocument"
	"github.com/bcgov/healthgateway-sub024/internal/domain/encounter"
	"github.com/bcgov/healthgateway-sub024/internal/domain/laboratory"
	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/audit"
	"github.com/bcgov/healthgateway-sub024/internal/platform/auth"
	"github.com/bcgov/healthgateway-sub024/internal/platform/db"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
	"github.com/bcgov/healthgateway-sub024/internal/platform/middleware"
	"github.com/bcgov/healthgateway-sub024/internal/platform/outbound"
	"github.com/bcgov/healthgateway-sub024/internal/platform/telemetry"
	"github.com/bcgov/healthgateway-sub024/internal/platform/tokenexchange"
)

const (
	readyTimeout = 3 * time.Second
	// readHeaderTimeout bounds how long a client may take to send headers.
	readHeaderTimeout = 10 * time.Second
)

// app is a fully wired gateway.
type app struct {
	echo      *echo.Echo
	telemetry *telemetry.Provider
	tokens    *tokenexchange.Client
	stores    *auditStores
	logger    zerolog.Logger
}

func newTokenClient(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) (*tokenexchange.Client, error) {
	return tokenexchange.New(tokenexchange.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.TokenClientID,
		ClientSecret: cfg.TokenClientSecret,
		Audience:     cfg.TokenAudience,
		Scopes:       cfg.TokenScopes,
		Skew:         cfg.TokenSkew,
		Timeout:      cfg.TokenTimeout,
	}, tokenexchange.WithLogger(logger), tokenexchange.WithMetrics(metrics))
}

// newApp builds the request pipeline and the routes. cfg must already be
// validated. On error everything opened so far is released.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	prov, err := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "gateway-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		SampleRate:     cfg.TraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	prov.InstallGlobals()
	var stores *auditStores
	defer func() {
		if err == nil {
			return
		}
		if stores != nil {
			_ = stores.Close(ctx)
		}
		if serr := prov.Shutdown(context.Background()); serr != nil {
			logger.Error().Err(serr).Msg("telemetry shutdown")
		}
	}()

	tokens, err := newTokenClient(cfg, logger, prov.Metrics)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	hc, err := outbound.NewClient(tokens, outbound.ClientConfig{
		Timeout:    cfg.DownstreamTimeout,
		Propagator: prov.Propagator(),
		Logger:     logger,
		Metrics:    prov.Metrics,
	})
	if err != nil {
		return nil, err
	}
	phsaClient, err := downstream.NewClient(phsa.ServiceName, cfg.PHSABaseURL, hc,
		downstream.WithLogger(logger),
		downstream.WithMetrics(prov.Metrics),
		downstream.WithTracer(prov.Tracer()),
	)
	if err != nil {
		return nil, err
	}
	encounterOpts, err := mspVisitOptions(cfg, logger, prov)
	if err != nil {
		return nil, err
	}

	stores, err = openAuditStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := stores.addKafkaSink(ctx, cfg); err != nil {
		return nil, err
	}
	store := stores.Store()
	recorder := audit.NewRecorder(store,
		audit.WithLogger(logger),
		audit.WithMetrics(prov.Metrics),
		audit.WithWriteTimeout(cfg.AuditWriteTimeout),
		audit.WithStoreName(stores.name),
	)

	authn, err := authenticator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	var devAuth echo.MiddlewareFunc
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth enabled: requests without a token act as the dev principal")
		devAuth = auth.DevAuth()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = readHeaderTimeout
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.SecurityHeaders(middleware.HeaderPolicy{HSTS: cfg.IsProduction(), NoStore: true}),
		echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "traceparent"},
		}),
		prov.TracingMiddleware(),
		middleware.Logger(logger),
		prov.MetricsMiddleware(),
		middleware.RenderErrors(),
		authn,
		devAuth,
		middleware.Audit(recorder, auth.AuthSkipper),
		auth.RequireAuth(auth.AuthSkipper),
		middleware.RequestTimeout(cfg.RequestTimeout),
	))

	checkers := append([]db.Checker{
		db.CheckFunc{Label: "token_exchange", Fn: func(ctx context.Context) error {
			_, err := tokens.GetToken(ctx)
			return err
		}},
	}, stores.checkers...)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/ready", db.ReadyHandler(readyTimeout, checkers...))
	e.GET("/metrics", prov.PrometheusHandler())

	api := e.Group("/v1/api")
	laboratory.NewHandler(
		laboratory.NewService(laboratory.NewPHSARepository(phsaClient, cfg.LabFetchSize), logger),
		cfg.LabFetchSize,
	).RegisterRoutes(api)
	encounter.NewHandler(
		encounter.NewService(encounter.NewPHSARepository(phsaClient, cfg.LabFetchSize), encounterOpts...),
	).RegisterRoutes(api)
	clinicaldocument.NewHandler(
		clinicaldocument.NewService(clinicaldocument.NewPHSARepository(phsaClient), logger),
	).RegisterRoutes(api)
	audit.NewHandler(store).RegisterRoutes(api, auth.RequireRole(auth.RoleAdmin))

	return &app{echo: e, telemetry: prov, tokens: tokens, stores: stores, logger: logger}, nil
}

// mspVisitOptions wires MSP visit history when ODR_BASE_URL is set. ODR is
// reached without the service token.
func mspVisitOptions(cfg *config.Config, logger zerolog.Logger, prov *telemetry.Provider) ([]encounter.Option, error) {
	if cfg.ODRBaseURL == "" {
		logger.Info().Msg("ODR_BASE_URL not set: msp visit history disabled")
		return nil, nil
	}
	hc := outbound.NewUnauthenticatedClient(outbound.ClientConfig{
		Timeout:    cfg.DownstreamTimeout,
		Propagator: prov.Propagator(),
		Logger:     logger,
		Metrics:    prov.Metrics,
	})
	odr, err := downstream.NewClient(encounter.ODRServiceName, cfg.ODRBaseURL, hc,
		downstream.WithLogger(logger),
		downstream.WithMetrics(prov.Metrics),
		downstream.WithTracer(prov.Tracer()),
	)
	if err != nil {
		return nil, fmt.Errorf("odr client: %w", err)
	}
	return []encounter.Option{
		encounter.WithMspVisits(encounter.NewODRRepository(odr, cfg.ODRMspVisitsPath)),
	}, nil
}

// authenticator builds the bearer token stage. Development mode without any
// verification settings accepts only the dev principal.
func authenticator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (echo.MiddlewareFunc, error) {
	jc := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
		Logger:     logger,
	}
	if jc.JWKSURL == "" && len(jc.SigningKey) == 0 && jc.Issuer != "" {
		u, err := auth.DiscoverJWKSURL(ctx, jc.Issuer, nil)
		if err != nil {
			return nil, fmt.Errorf("discover jwks: %w", err)
		}
		jc.JWKSURL = u
		logger.Info().Str("jwks_url", u).Msg("discovered signing keys")
	}
	return auth.Authenticate(jc), nil
}

// Close flushes telemetry and releases the audit stores.
func (a *app) Close(ctx context.Context) {
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("telemetry shutdown")
	}
	if err := a.stores.Close(ctx); err != nil {
		a.logger.Error().Err(err).Msg("audit store shutdown")
	}
}
