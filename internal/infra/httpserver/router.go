package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/report-interpreter/internal/application/analysis"
	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
	"github.com/bryanwahyu/report-interpreter/internal/middleware"
)

const (
	defaultMaxUploadBytes = 10 << 20
	uploadField           = "report"
	genericFailure        = "Error analyzing report"
)

type Options struct {
	Logger         *zap.Logger
	Metrics        *middleware.Metrics
	MaxUploadBytes int64
	AllowedOrigins []string
	Checks         map[string]middleware.HealthChecker
}

type Router struct {
	svc            *appanalysis.Service
	logger         *zap.Logger
	metrics        *middleware.Metrics
	maxUploadBytes int64
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{
		svc:            svc,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		maxUploadBytes: opts.MaxUploadBytes,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = middleware.NewMetrics()
	}
	if r.maxUploadBytes <= 0 {
		r.maxUploadBytes = defaultMaxUploadBytes
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.Logging(r.logger),
		r.metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}),
	)

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checks))
	mux.Get("/metrics", r.metrics.Handler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/medical/analyze", r.wrap(r.handleTextAnalyze))
		rt.Post("/analyze-report", r.wrap(r.handleImageAnalyze))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks malformed bodies that never reach validation.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			r.metrics.IncrementAnalyses()
			return
		}

		var badReq errBadRequest
		var tooLarge *http.MaxBytesError
		switch {
		case domain.IsValidation(err):
			r.metrics.IncrementRejected()
			writeJSON(w, http.StatusBadRequest, errorBody{Message: validationMessage(err)})
		case errors.As(err, &badReq):
			r.metrics.IncrementRejected()
			writeJSON(w, http.StatusBadRequest, errorBody{Message: badReq.msg})
		case errors.As(err, &tooLarge):
			r.metrics.IncrementRejected()
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Message: "Request body is too large"})
		default:
			r.metrics.IncrementUpstreamFailure()
			if errors.Is(err, domain.ErrQuotaExceeded) {
				r.metrics.IncrementQuotaExceeded()
			}
			writeJSON(w, http.StatusInternalServerError, errorBody{Message: genericFailure, Error: err.Error()})
		}
	}
}

// validationMessages are the client-facing texts for domain validation errors.
var validationMessages = map[error]string{
	domain.ErrEmptyReport:  "Report text is required",
	domain.ErrMissingImage: "Report image is required",
	domain.ErrNotImage:     "Please upload an image file",
}

func validationMessage(err error) string {
	for sentinel, msg := range validationMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// POST /api/medical/analyze
// Body: {"reportText": "<text>"}
func (r *Router) handleTextAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadBytes)
	var body domain.TextRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		return errBadRequest{msg: "Request body must be JSON"}
	}

	raw, err := r.svc.AnalyzeText(req.Context(), body.ReportText)
	if err != nil {
		return err
	}

	// written by hand so the upstream bytes go out exactly as received
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"analysis":`)
	_, _ = w.Write(raw)
	_, _ = io.WriteString(w, "}\n")
	return nil
}

// POST /api/analyze-report
// Multipart body with the image in field "report".
func (r *Router) handleImageAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadBytes)
	if err := req.ParseMultipartForm(r.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return errBadRequest{msg: "Request body must be multipart/form-data"}
		}
		return errBadRequest{msg: "Malformed multipart body"}
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			_, verr := domain.ValidateImage(domain.ImageRequest{})
			return verr
		}
		return errBadRequest{msg: "Malformed multipart body"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return errBadRequest{msg: "Could not read uploaded file"}
	}

	res, err := r.svc.AnalyzeImage(req.Context(), domain.ImageRequest{
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
