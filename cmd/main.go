package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/mineflow/fleet-dispatch/internal/auth"
	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/handlers"
	"github.com/mineflow/fleet-dispatch/internal/middleware"
	"github.com/mineflow/fleet-dispatch/internal/notify"
	"github.com/mineflow/fleet-dispatch/internal/process"
	"github.com/mineflow/fleet-dispatch/internal/storage"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment from .env")
	}
	log.SetFormatter(&log.JSONFormatter{})

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	database := client.Database(db.DatabaseName())
	log.WithField("database", database.Name()).Info("Connected to MongoDB")

	processes := &db.MongoProcessCollection{Collection: database.Collection("truck_processes")}
	exceptions := &db.MongoExceptionCollection{Collection: database.Collection("exceptions")}
	proofs := &db.MongoProofCollection{Collection: database.Collection("delivery_proofs")}
	users := &db.MongoUserCollection{Collection: database.Collection("users")}
	orders := &db.MongoOrderCollection{Collection: database.Collection("orders")}
	materials := &db.MongoMaterialCollection{Collection: database.Collection("materials")}

	evidence, err := storage.NewGridFSStore(database)
	if err != nil {
		log.WithError(err).Fatal("Failed to open evidence store")
	}

	var notifier notify.Publisher = notify.NoopPublisher{}
	if brokerURL := os.Getenv("MQTT_BROKER_URL"); brokerURL != "" {
		mqttPublisher, err := notify.NewMQTTPublisher(brokerURL, "mineflow-server")
		if err != nil {
			log.WithError(err).Warn("Change events disabled: MQTT broker unreachable")
		} else {
			defer mqttPublisher.Close()
			notifier = mqttPublisher
			log.WithField("broker", brokerURL).Info("Publishing change events over MQTT")
		}
	}

	engine := process.NewEngine(processes)
	if raw := os.Getenv("MAX_NET_WEIGHT_TONNES"); raw != "" {
		if max, err := strconv.ParseFloat(raw, 64); err == nil && max > 0 {
			engine.MaxNetWeight = max
		}
	}

	svc := process.NewService(processes, exceptions, proofs, users, orders, engine, evidence, notifier)

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()

	authHandler := handlers.NewAuthHandler(authService, users)
	processHandler := handlers.NewProcessHandler(svc)
	exceptionHandler := handlers.NewExceptionHandler(svc)
	driverHandler := handlers.NewDriverHandler(svc, users)
	catalogHandler := handlers.NewCatalogHandler(orders, materials)
	statsHandler := handlers.NewStatsHandler(svc)
	userHandler := handlers.NewUserHandler(users)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)

	mux.HandleFunc("GET /api/processes", processHandler.List)
	mux.Handle("POST /api/processes", requirePermission(authMiddleware, "create_process", processHandler.Create))
	mux.HandleFunc("GET /api/processes/{id}", processHandler.Get)
	mux.Handle("POST /api/processes/{id}/stages/{stage}/complete", requirePermission(authMiddleware, "complete_stage", processHandler.CompleteStage))
	mux.Handle("POST /api/processes/{id}/proof", requirePermission(authMiddleware, "submit_proof", processHandler.SubmitProof))
	mux.HandleFunc("GET /api/processes/{id}/proof", processHandler.GetProof)
	mux.Handle("POST /api/processes/{id}/assign-driver", requirePermission(authMiddleware, "assign_driver", processHandler.AssignDriver))
	mux.Handle("POST /api/processes/{id}/unassign-driver", requirePermission(authMiddleware, "assign_driver", processHandler.UnassignDriver))

	mux.HandleFunc("GET /api/exceptions", exceptionHandler.List)
	mux.Handle("POST /api/exceptions/{id}/resolve", requirePermission(authMiddleware, "resolve_exception", exceptionHandler.Resolve))

	mux.Handle("GET /api/users", requirePermission(authMiddleware, "manage_users", userHandler.List))
	mux.Handle("PUT /api/users/{id}", requirePermission(authMiddleware, "manage_users", userHandler.Update))
	mux.Handle("DELETE /api/users/{id}", requirePermission(authMiddleware, "delete_user", userHandler.Delete))

	mux.HandleFunc("GET /api/drivers", driverHandler.List)
	mux.HandleFunc("GET /api/drivers/available", driverHandler.ListAvailable)
	mux.HandleFunc("GET /api/drivers/{id}/dispatches", driverHandler.Dispatches)
	mux.HandleFunc("GET /api/drivers/{id}/stats", driverHandler.Stats)

	mux.HandleFunc("GET /api/orders", catalogHandler.ListOrders)
	mux.Handle("POST /api/orders", requirePermission(authMiddleware, "create_order", catalogHandler.CreateOrder))
	mux.Handle("PUT /api/orders/{id}", requirePermission(authMiddleware, "update_order", catalogHandler.UpdateOrder))
	mux.HandleFunc("GET /api/materials", catalogHandler.ListMaterials)
	mux.Handle("POST /api/materials", requirePermission(authMiddleware, "create_order", catalogHandler.CreateMaterial))
	mux.Handle("PUT /api/materials/{id}", requirePermission(authMiddleware, "update_order", catalogHandler.UpdateMaterial))

	mux.HandleFunc("GET /api/stats/dashboard", statsHandler.Dashboard)
	mux.HandleFunc("GET /api/stats/recent", statsHandler.RecentActivity)

	handler := rateLimiter.RateLimit(300, 60)(authMiddleware.Authenticate(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.WithField("port", port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// requirePermission chains the permission gate in front of a handler.
// Authentication itself runs once, at the outer middleware.
func requirePermission(m *middleware.AuthMiddleware, action string, h http.HandlerFunc) http.Handler {
	return m.RequirePermission(action)(h)
}
