package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/orebase/mine-maintenance/internal/auth"
	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/handlers"
	"github.com/orebase/mine-maintenance/internal/middleware"
	"github.com/orebase/mine-maintenance/internal/notify"
	"github.com/orebase/mine-maintenance/internal/workflow"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment")
	}

	log.SetFormatter(&log.JSONFormatter{})
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	log.Info("connected to MongoDB")

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "mine_maintenance"
	}
	database := client.Database(dbName)

	users := &db.MongoUserCollection{Collection: database.Collection("users")}
	reports := &db.MongoReportCollection{Collection: database.Collection("maintenance_reports")}
	jobs := &db.MongoJobCollection{
		Jobs:        database.Collection("maintenance_jobs"),
		Assignments: database.Collection("job_assignments"),
	}
	machines := &db.MongoMachineCollection{Collection: database.Collection("machines")}
	notifications := &db.MongoNotificationCollection{Collection: database.Collection("notifications")}

	notifier := buildNotifier(notifications)

	statusSync := workflow.NewStatusSyncService(reports, jobs, machines)
	jobService := workflow.NewJobService(jobs, reports, machines, users, statusSync, notifier)
	reportService := workflow.NewReportService(reports, machines, users, jobService, statusSync, notifier)

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("failed to initialize auth service")
	}

	authHandler := handlers.NewAuthHandler(authService, users)
	reportsHandler := handlers.NewReportsHandler(reportService)
	jobsHandler := handlers.NewJobsHandler(jobService)
	notificationsHandler := handlers.NewNotificationsHandler(notifications)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", authHandler.UpdateProfile)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	reportsHandler.Register(mux)
	jobsHandler.Register(mux)
	notificationsHandler.Register(mux)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()

	handler := rateLimiter.RateLimit(100, 60)(authMiddleware.Authenticate(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

// buildNotifier wires the MQTT transport when a broker is configured and
// degrades to store-only delivery when it is not.
func buildNotifier(store db.NotificationCollection) *notify.Notifier {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		log.Info("MQTT_BROKER not set, notifications are store-only")
		return notify.NewNotifier(store, nil)
	}

	client, err := notify.ConnectBroker(broker)
	if err != nil {
		log.WithError(err).Warn("MQTT broker unreachable, notifications are store-only")
		return notify.NewNotifier(store, nil)
	}
	log.WithField("broker", broker).Info("connected to MQTT broker")
	return notify.NewNotifier(store, client)
}
