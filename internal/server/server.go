package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/blob"
	"TalentPipe-backend/internal/config"
	"TalentPipe-backend/internal/database"
	"TalentPipe-backend/internal/lifecycle"
	"TalentPipe-backend/internal/stagemachine"
)

// Deps are the services the HTTP layer is built over
type Deps struct {
	DB           *database.DBinstanceStruct
	Jobs         *lifecycle.Manager
	Applications *stagemachine.Machine
	Blobs        blob.Store
	Signer       *auth.Signer
	Revocations  auth.RevocationStore
	Log          *logrus.Logger
}

// MyServer holds what route handlers need
type MyServer struct {
	Deps
	cfg *config.Configuration
}

// NewServer construct new http.Server serving the API on cfg.Port
func NewServer(cfg *config.Configuration, deps Deps) *http.Server {
	s := &MyServer{Deps: deps, cfg: cfg}

	// Declare Server config
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
