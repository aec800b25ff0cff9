// main.go
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ariebrainware/hospital-appointment/config"
	_ "github.com/ariebrainware/hospital-appointment/docs"
	"github.com/ariebrainware/hospital-appointment/endpoint"
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// @title						Hospital Appointment API
// @version					1.0
// @description				Departments, doctors, availability slots, appointments and visit history.
// @BasePath					/
// @securityDefinitions.apikey	SessionToken
// @in							header
// @name						session-token
func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-appointment",
		Short: "Hospital appointment API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate, seed and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			if err := model.Migrate(db); err != nil {
				return err
			}
			log.Println("migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert default departments and the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			if err := model.Migrate(db); err != nil {
				return err
			}
			return seed(db, config.LoadConfig())
		},
	}
}

func openDatabase() (*gorm.DB, error) {
	db, err := config.ConnectDatabase()
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}

func seed(db *gorm.DB, cfg *config.Config) error {
	if err := model.SeedDepartments(db); err != nil {
		return err
	}
	hash, salt, err := util.HashNewPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	created, err := model.SeedAdmin(db, cfg.AdminUsername, cfg.AdminEmail, hash, salt)
	if err != nil {
		return err
	}
	if created {
		log.Printf("seeded admin account %q", cfg.AdminUsername)
	}
	return nil
}

func runServer() error {
	cfg := config.LoadConfig()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	if err := model.Migrate(db); err != nil {
		return err
	}
	if err := seed(db, cfg); err != nil {
		return err
	}

	util.SetJWTSecret(cfg.JWTSecret)
	util.SetSecurityLoggerDB(db)
	util.InitAccountCacheFromEnv()

	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("Redis unavailable, using database sessions only: %v", err)
	}
	if cfg.GeoIPDBPath != "" {
		if err := util.InitGeoIP(cfg.GeoIPDBPath); err != nil {
			log.Printf("GeoIP disabled: %v", err)
		}
		defer util.CloseGeoIP()
	}

	recovery := gin.Recovery()
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Printf("sentry.Init: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			recovery = gin.CustomRecovery(func(c *gin.Context, recovered any) {
				sentry.CurrentHub().Recover(recovered)
				c.AbortWithStatus(http.StatusInternalServerError)
			})
		}
	}

	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Logger(), recovery)
	router.Use(middleware.RequestID())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.EndpointCallLogger())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	endpoint.RegisterRoutes(router)

	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}
	return nil
}
