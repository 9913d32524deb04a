package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/entity"
)

type roomProvider interface {
	Snapshot(ctx context.Context, roomID string) (*entity.Room, error)
}

type Server struct {
	logger *slog.Logger
	rooms  roomProvider
}

func New(logger *slog.Logger, rooms roomProvider) *Server {
	return &Server{
		logger: logger,
		rooms:  rooms,
	}
}

func (that *Server) Start(port string) error {
	router := chi.NewRouter()
	router.Get("/ping", that.handlePing)
	router.Get("/rooms/{roomID}", that.handleRoomSnapshot)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Server) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleRoomSnapshot")

	roomID := chi.URLParam(r, "roomID")

	room, err := that.rooms.Snapshot(r.Context(), roomID)

	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
		return
	case errors.Is(err, apperror.ErrStorageUnavailable):
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		log.Error("failed to get room snapshot", "roomID", roomID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(room); err != nil {
		log.Error("failed to encode room snapshot", "roomID", roomID, "error", err)
	}
}
