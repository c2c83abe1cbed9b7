package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest/gateway"
	"github.com/keyduel/keyduel/go/internal/identity"
)

func setupServer(services *Services, gatewayService *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	gatewayService.RegisterRoutes(mux)
	registerIdentityRoutes(mux, services)
	registerWalletRoutes(mux, services)
	setupHealthCheck(mux)

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func registerIdentityRoutes(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/api/participants", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req identity.CreateParticipantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		participant, err := services.Identity.RegisterParticipant(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(participant)
	})

	mux.HandleFunc("/api/participants/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := uuid.Parse(r.URL.Path[len("/api/participants/"):])
		if err != nil {
			http.Error(w, "Invalid participant id", http.StatusBadRequest)
			return
		}
		participant, err := services.Identity.GetParticipant(r.Context(), id)
		if err != nil {
			http.Error(w, "Participant not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(participant)
	})
}

func registerWalletRoutes(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/api/wallets/", func(w http.ResponseWriter, r *http.Request) {
		rest := r.URL.Path[len("/api/wallets/"):]

		// POST /api/wallets/{id}/daily credits the daily streak bonus.
		const dailySuffix = "/daily"
		if len(rest) > len(dailySuffix) && rest[len(rest)-len(dailySuffix):] == dailySuffix {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			id, err := uuid.Parse(rest[:len(rest)-len(dailySuffix)])
			if err != nil {
				http.Error(w, "Invalid identity id", http.StatusBadRequest)
				return
			}
			wallet, err := services.Ledger.RecordDailyPlay(r.Context(), id, time.Now())
			if err != nil {
				log.Error().Err(err).Str("identity_id", id.String()).Msg("failed to record daily play")
				http.Error(w, "Failed to record daily play", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(wallet)
			return
		}

		// GET /api/wallets/{id} returns the balance and streak.
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := uuid.Parse(rest)
		if err != nil {
			http.Error(w, "Invalid identity id", http.StatusBadRequest)
			return
		}
		wallet, err := services.Ledger.GetOrCreateWallet(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("identity_id", id.String()).Msg("failed to load wallet")
			http.Error(w, "Failed to load wallet", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wallet)
	})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
