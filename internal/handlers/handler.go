package handlers

import (
	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/services"
)

// Services groups the domain services the API composes.
type Services struct {
	Auth         *services.AuthService
	Appointments *services.AppointmentService
	History      *services.MedicalHistoryService
	Analyzer     services.Analyzer
}

type Options struct {
	DevMode        bool
	MaxUploadBytes int64
}

// Handler holds everything a route needs. Route methods live in the
// *_handler.go files of this package.
type Handler struct {
	Auth         *services.AuthService
	Appointments *services.AppointmentService
	History      *services.MedicalHistoryService
	Analyzer     services.Analyzer

	logger    *logging.Logger
	devMode   bool
	maxUpload int64
}

func NewHandler(svc Services, opts Options, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		Auth:         svc.Auth,
		Appointments: svc.Appointments,
		History:      svc.History,
		Analyzer:     svc.Analyzer,
		logger:       logger,
		devMode:      opts.DevMode,
		maxUpload:    maxUpload,
	}
}
