package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"imcitrack/internal/checklist"
	"imcitrack/internal/service"
	"imcitrack/internal/transport/rest/handler"
	"imcitrack/internal/transport/rest/middleware"
	"imcitrack/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	Checklist          *checklist.Checklist
	ObservationService *service.ObservationService
	ImportService      *service.ImportService
	ReportService      *service.ReportService
	WSHub              *ws.Hub
	CORSOrigins        []string
	Logger             zerolog.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	observationHandler := handler.NewObservationHandler(c.ObservationService, c.Logger)
	importHandler := handler.NewImportHandler(c.ImportService, c.Logger)
	reportHandler := handler.NewReportHandler(c.ReportService, c.Logger)
	checklistHandler := handler.NewChecklistHandler(c.Checklist)
	wsHandler := ws.NewHandler(c.WSHub, c.CORSOrigins, c.Logger)

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(c.Logger))
	r.Use(middleware.Logger(c.Logger))
	r.Use(middleware.CORS(c.CORSOrigins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/checklist", checklistHandler.Outline).Methods("GET", "OPTIONS")

	v1.HandleFunc("/drafts/{id}", observationHandler.SaveDraft).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/drafts/{id}", observationHandler.GetDraft).Methods("GET", "OPTIONS")

	v1.HandleFunc("/observations", observationHandler.Submit).Methods("POST", "OPTIONS")
	v1.HandleFunc("/observations/{id}", observationHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/observations/{id}/rescore", observationHandler.Rescore).Methods("POST", "OPTIONS")
	v1.HandleFunc("/courses/{courseId}/observations", observationHandler.ListByCourse).Methods("GET", "OPTIONS")

	v1.HandleFunc("/imports", importHandler.Import).Methods("POST", "OPTIONS")

	v1.HandleFunc("/reports/observations/{id}", reportHandler.Observation).Methods("GET", "OPTIONS")
	v1.HandleFunc("/reports/courses/{courseId}", reportHandler.Course).Methods("GET", "OPTIONS")

	v1.HandleFunc("/ws/courses/{courseId}", wsHandler.CourseWS).Methods("GET")

	return r
}
