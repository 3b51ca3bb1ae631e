package main

import (
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/medai/medai/internal/config"
	"github.com/medai/medai/internal/domain/formulary"
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/domain/patient"
	"github.com/medai/medai/internal/loader"
	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/memstore"
	"github.com/medai/medai/internal/platform/auth"
	"github.com/medai/medai/internal/platform/middleware"
	"github.com/medai/medai/internal/rules"
)

const version = "0.1.0"

// repos is the full repository set, backed by Postgres or by memory.
type repos struct {
	patients        patient.PatientRepository
	labs            patient.PatientLabRepository
	units           formulary.DrugUnitRepository
	drugs           formulary.DrugRepository
	dosages         formulary.DosageRepository
	contra          formulary.ContraindicationRepository
	readings        glucose.ReadingRepository
	history         glucose.ReadingHistoryRepository
	insulinRules    glucose.InsulinRuleRepository
	insulin         glucose.InsulinRepository
	medications     medication.PatientMedicationRepository
	recommendations medication.RecommendationRepository
}

func pgRepos(pool *pgxpool.Pool) repos {
	return repos{
		patients:        patient.NewPatientRepoPG(pool),
		labs:            patient.NewPatientLabRepoPG(pool),
		units:           formulary.NewDrugUnitRepoPG(pool),
		drugs:           formulary.NewDrugRepoPG(pool),
		dosages:         formulary.NewDosageRepoPG(pool),
		contra:          formulary.NewContraindicationRepoPG(pool),
		readings:        glucose.NewReadingRepoPG(pool),
		history:         glucose.NewReadingHistoryRepoPG(pool),
		insulinRules:    glucose.NewInsulinRuleRepoPG(pool),
		insulin:         glucose.NewInsulinRepoPG(pool),
		medications:     medication.NewPatientMedicationRepoPG(pool),
		recommendations: medication.NewRecommendationRepoPG(pool),
	}
}

func memRepos(s *memstore.Store) repos {
	return repos{
		patients:        s.Patients,
		labs:            s.Labs,
		units:           s.Units,
		drugs:           s.Drugs,
		dosages:         s.Dosages,
		contra:          s.Contraindications,
		readings:        s.Readings,
		history:         s.History,
		insulinRules:    s.InsulinRules,
		insulin:         s.Insulin,
		medications:     s.Medications,
		recommendations: s.Recommendations,
	}
}

func (r repos) deps() rules.Deps {
	return rules.Deps{
		Patients:          r.patients,
		Drugs:             r.drugs,
		Dosages:           r.dosages,
		Contraindications: r.contra,
		History:           r.history,
		InsulinRules:      r.insulinRules,
		Insulin:           r.insulin,
		Medications:       r.medications,
		Recommendations:   r.recommendations,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// newEngine declares the rules over r and registers a persister for every
// entity.
func newEngine(cfg *config.Config, logger zerolog.Logger, r repos, opts ...logic.Option) (*logic.Engine, error) {
	bank := rules.NewBank(r.deps(), rules.Options{StrictRanges: cfg.StrictClinicalRanges})
	opts = append([]logic.Option{
		logic.WithLogger(logger),
		logic.WithMaxNestLevel(cfg.LogicMaxNestLevel),
		logic.WithTracer(otel.Tracer("github.com/medai/medai")),
	}, opts...)
	engine, err := logic.NewEngine(bank, opts...)
	if err != nil {
		return nil, err
	}
	patient.RegisterPersisters(engine, r.patients, r.labs)
	formulary.RegisterPersisters(engine, r.units, r.drugs, r.dosages, r.contra)
	glucose.RegisterPersisters(engine, r.readings, r.history, r.insulinRules, r.insulin)
	medication.RegisterPersisters(engine, r.medications, r.recommendations)
	return engine, nil
}

// newServer builds the echo server with every route except /health/db,
// which needs the pool.
func newServer(cfg *config.Config, logger zerolog.Logger, engine *logic.Engine, r repos) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.IfMatch())
	e.Use(echomw.BodyLimit("12M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", "If-Match"},
		ExposeHeaders: []string{"ETag"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware([]byte(cfg.AuthSigningKey))
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	api := e.Group("/api/v1", authMW)

	patient.NewHandler(patient.NewService(engine, r.patients, r.labs)).RegisterRoutes(api)
	formulary.NewHandler(formulary.NewService(engine, r.units, r.drugs, r.dosages, r.contra)).RegisterRoutes(api)
	glucose.NewHandler(glucose.NewService(engine, r.readings, r.history, r.insulinRules, r.insulin)).RegisterRoutes(api)
	medication.NewHandler(medication.NewService(engine, r.medications, r.recommendations)).RegisterRoutes(api)
	rules.NewHandler(engine).RegisterRoutes(api)
	loader.NewHandler(loader.New(engine, r.drugs, logger)).RegisterRoutes(api)

	return e
}
