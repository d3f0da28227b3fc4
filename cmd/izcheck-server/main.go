package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/izcheck/izcheck/internal/config"
	"github.com/izcheck/izcheck/internal/domain/evaluation"
	"github.com/izcheck/izcheck/internal/domain/patient"
	"github.com/izcheck/izcheck/internal/domain/schedule"
	"github.com/izcheck/izcheck/internal/platform/db"
	"github.com/izcheck/izcheck/internal/platform/middleware"
	"github.com/izcheck/izcheck/pkg/timecalc"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "izcheck-server",
		Short: "Immunization schedule evaluation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Schedule domain
	schedRepo := schedule.NewRepoPG(pool)
	vaccineRepo := schedule.NewVaccineInfoRepoPG(pool)
	importer := schedule.NewImporter(schedRepo, vaccineRepo, logger)
	schedSvc := schedule.NewService(schedRepo, vaccineRepo, importer)
	schedule.NewHandler(schedSvc).RegisterRoutes(apiV1)

	// Patient domain
	patientRepo := patient.NewRepoPG(pool)
	patientSvc := patient.NewService(patientRepo)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	// Evaluation domain
	evaluator := evaluation.NewEvaluator(schedSvc, logger)
	evalSvc := evaluation.NewService(evaluator, patientRepo, logger)
	evaluation.NewHandler(evalSvc).RegisterRoutes(apiV1)

	// Load schedule documents at startup when the directory is present.
	if _, statErr := os.Stat(cfg.ScheduleDir); statErr == nil {
		if err := schedSvc.Import(ctx, cfg.ScheduleDir, cfg.CVXMapFile); err != nil {
			logger.Error().Err(err).Str("dir", cfg.ScheduleDir).Msg("schedule import failed")
		} else {
			logger.Info().Str("dir", cfg.ScheduleDir).Msg("schedule imported")
		}
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import antigen schedule documents into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cvxMap, _ := cmd.Flags().GetString("cvx-map")

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.ScheduleDir
			}
			if cvxMap == "" {
				cvxMap = cfg.CVXMapFile
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := schedule.NewRepoPG(pool)
			vaccines := schedule.NewVaccineInfoRepoPG(pool)
			importer := schedule.NewImporter(repo, vaccines, logger)
			svc := schedule.NewService(repo, vaccines, importer)

			if err := svc.Import(ctx, dir, cvxMap); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			antigens, err := svc.ListAntigens(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d antigen(s) from %s\n", len(antigens), dir)
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Path to the schedule XML directory (default: SCHEDULE_DIR)")
	cmd.Flags().String("cvx-map", "", "Path to the CVX mapping XML file (default: CVX_MAP_FILE)")
	return cmd
}

// historyDoc is the JSON document accepted by the evaluate subcommand.
type historyDoc struct {
	DOB    string `json:"dob"`
	Gender string `json:"gender"`
	Doses  []struct {
		CVX  int    `json:"cvx"`
		Date string `json:"date"`
	} `json:"doses"`
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [cvx=date ...]",
		Short: "Evaluate a vaccination history against the loaded schedule",
		Long: `Evaluate a vaccination history without a database. The history comes from
a JSON document ({"dob": ..., "gender": ..., "doses": [{"cvx": 20, "date": ...}]})
or from cvx=date arguments, e.g.:

  izcheck-server evaluate --history record.json --schedule-dir ./schedules
  izcheck-server evaluate --dob 2010-01-01 --schedule-dir ./schedules 20=2010-03-01 20=2010-05-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dob, _ := cmd.Flags().GetString("dob")
			gender, _ := cmd.Flags().GetString("gender")
			asOfStr, _ := cmd.Flags().GetString("as-of")
			dir, _ := cmd.Flags().GetString("schedule-dir")
			cvxMap, _ := cmd.Flags().GetString("cvx-map")
			historyFile, _ := cmd.Flags().GetString("history")

			var history historyDoc
			if historyFile != "" {
				data, err := os.ReadFile(historyFile)
				if err != nil {
					return fmt.Errorf("read history: %w", err)
				}
				if err := json.Unmarshal(data, &history); err != nil {
					return fmt.Errorf("parse history: %w", err)
				}
				if dob == "" {
					dob = history.DOB
				}
				if !cmd.Flags().Changed("gender") && history.Gender != "" {
					gender = history.Gender
				}
			}

			if dob == "" {
				return fmt.Errorf("--dob or a history document with dob is required")
			}
			if dir == "" {
				return fmt.Errorf("--schedule-dir is required")
			}

			birthDate, err := timecalc.ToDate(dob)
			if err != nil {
				return fmt.Errorf("invalid --dob: %w", err)
			}
			var asOf timecalc.Date
			if asOfStr != "" {
				if asOf, err = timecalc.ToDate(asOfStr); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

			repo := schedule.NewMemoryRepository()
			vaccines := schedule.NewMemoryVaccineInfoRepository()
			importer := schedule.NewImporter(repo, vaccines, logger)
			svc := schedule.NewService(repo, vaccines, importer)

			ctx := context.Background()
			if err := svc.Import(ctx, dir, cvxMap); err != nil {
				return fmt.Errorf("schedule import failed: %w", err)
			}

			p := &patient.Patient{
				ID:     uuid.New(),
				Gender: patient.NormalizeGender(gender),
				DOB:    birthDate,
			}

			var doses []*patient.VaccineDose
			for _, d := range history.Doses {
				administered, err := timecalc.ToDate(d.Date)
				if err != nil {
					return fmt.Errorf("invalid dose date %q: %w", d.Date, err)
				}
				doses = append(doses, &patient.VaccineDose{
					ID:               uuid.New(),
					PatientID:        p.ID,
					CVXCode:          d.CVX,
					DateAdministered: administered,
				})
			}
			for _, arg := range args {
				cvxStr, dateStr, found := strings.Cut(arg, "=")
				if !found {
					return fmt.Errorf("invalid dose %q: expected cvx=date", arg)
				}
				cvx, err := strconv.Atoi(cvxStr)
				if err != nil {
					return fmt.Errorf("invalid cvx code in %q: %w", arg, err)
				}
				administered, err := timecalc.ToDate(dateStr)
				if err != nil {
					return fmt.Errorf("invalid date in %q: %w", arg, err)
				}
				doses = append(doses, &patient.VaccineDose{
					ID:               uuid.New(),
					PatientID:        p.ID,
					CVXCode:          cvx,
					DateAdministered: administered,
				})
			}

			evaluator := evaluation.NewEvaluator(svc, logger)
			result, err := evaluator.EvaluateRecord(ctx, p, doses, asOf)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("history", "", "Path to a patient history JSON document")
	cmd.Flags().String("dob", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().String("gender", "unknown", "Patient gender (male, female, unknown)")
	cmd.Flags().String("as-of", "", "Assessment date (default: today)")
	cmd.Flags().String("schedule-dir", "", "Path to the schedule XML directory")
	cmd.Flags().String("cvx-map", "", "Path to the CVX mapping XML file")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}
