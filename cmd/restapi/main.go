package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/booking"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/directory"
	"clinic-booking/internal/logging"
	"clinic-booking/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configPath = flag.String("config", "", "Config file path")

// appointmentsChannel is the notification channel fed by the schema trigger on
// every appointment change.
const appointmentsChannel = "appointments_changed"

// loadConfigurations loads system configurations based on the given config file.
func loadConfigurations() configs.Config {
	if *configPath == "" {
		log.Fatal("no config file path was given")
	}
	config, err := configs.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	return config
}

// createDBConnection creates a new database connection based on the given configuration.
func createDBConnection(config configs.Config) database.Connection {
	dbConn, err := database.NewConnection(config)
	if err != nil {
		log.Fatal(err)
	}
	return dbConn
}

func main() {
	// Load dependencies
	flag.Parse()
	config := loadConfigurations()
	dbConn := createDBConnection(config)

	// Init error logger
	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Init the services. The directory implements the doctor registration hook
	// the auth service calls on doctor sign-up.
	directoryService := directory.NewService(config, dbConn)
	bookingService := booking.NewService(config, dbConn, directoryService)

	// Setup the HTTP router
	router := chi.NewRouter()
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(metrics.PrometheusMiddleware)
	router.Use(middleware.SetHeader("Content-type", "application/json"))
	router.Handle("/metrics", promhttp.Handler())

	// Setup Auth routes
	authService := auth.Setup(router, logger, config, dbConn, directoryService)

	// Setup Directory routes
	directory.Setup(router, logger, authService, directoryService)

	// Setup Booking routes
	booking.Setup(router, logger, authService, bookingService)

	// Bridge database change notifications into the live subscriptions, so
	// changes made by other processes reach the watchers of this one.
	changeListener, err := database.NewChangeListener(config, appointmentsChannel, logger, func(payload string) {
		bookingService.NotifyChange()
	})
	if err != nil {
		log.Fatal(err)
	}

	// Creates the HTTP server. No write timeout: /api/v1/appointments/watch
	// holds its response open for the lifetime of the subscription.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.ServerPort()),
		Handler:      router,
		ErrorLog:     logger,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  15 * time.Second,
	}

	// Channel to listen OS signalling in order to gracefully shutdown the HTTP server and other resources
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Starts the server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	logging.PrintlnInfo(logger, fmt.Sprint("server started listing at ", config.ServerPort()))

	// Listens until server stop
	<-exit
	logging.PrintlnWarn(logger, "server stopped")

	// Creates a timeout to handle resources release
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		changeListener.Close()
		dbConn.Close()
		cancel()
	}()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal(fmt.Errorf("an error occurred while server is shutting down: %w", err))
	}

	logging.PrintlnInfo(logger, "server shutdown successfully")
}
