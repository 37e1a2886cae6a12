package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

var (
	ErrUserExists     = errors.New("api: user already exists")
	ErrUserNotFound   = errors.New("api: user not found")
	ErrMissingFields  = errors.New("api: missing required fields")
	ErrInvalidDOB     = errors.New("api: dob must be formatted as YYYY-MM-DD")
	ErrInvalidPayload = errors.New("api: invalid request body")
	ErrPasswordLength = errors.New("api: password longer than 72 bytes is not supported")
)

const (
	MaxBodySize = 50 << 20 // 50MB, images travel inline as base64

	RequestIDHeader = "X-Request-ID"

	registeredMessage = "User registered successfully"
	uploadedMessage   = "Image uploaded successfully"
)

type APIServer struct {
	db         *Database
	hasher     PasswordHasher
	listenAddr string
	now        func() time.Time
}

func NewAPIServer(db *Database, hasher PasswordHasher, listenAddr string) *APIServer {
	return &APIServer{
		db:         db,
		hasher:     hasher,
		listenAddr: listenAddr,
		now:        time.Now,
	}
}

type APIFunc func(w http.ResponseWriter, r *http.Request) error

func makeHandler(f APIFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)

		var statusError *StatusError
		if errors.As(err, &statusError) {
			slog.Error("Writing API Status Error to response", "status_error", statusError, "status", statusError.Status)
			http.Error(w, statusError.Message(), statusError.Status)

			return
		}

		if err != nil {
			slog.Error("Writing an error to response", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}
	}
}

type StatusError struct {
	Err    error
	Status int
}

func (a *StatusError) Error() string {
	if a.Err != nil {
		return a.Err.Error()
	}

	return ""
}

func (a *StatusError) Unwrap() error {
	return a.Err
}

// Message is the plain text body sent to the client.
func (a *StatusError) Message() string {
	if a.Err != nil {
		return a.Err.Error()
	}

	return http.StatusText(a.Status)
}

func (s *APIServer) Handler() http.Handler {
	r := http.NewServeMux()

	r.HandleFunc("/register", makeHandler(s.HandleRegister))
	r.HandleFunc("/upload_image", makeHandler(s.HandleUploadImage))
	r.HandleFunc("/users", makeHandler(s.HandleListUsers))

	return logMiddleware(r)
}

// Run serves until ctx is cancelled, then shuts the server down gracefully
// within shutdownTimeout.
func (s *APIServer) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting the server", "listen_addr", s.listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down the server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

type RegisterRequest struct {
	Name     string `json:"name"`
	UID      string `json:"uid"`
	Password string `json:"password"`
	DOB      string `json:"dob"`
}

func (s *APIServer) HandleRegister(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	if req.Name == "" || req.UID == "" || req.Password == "" {
		return &StatusError{Err: ErrMissingFields, Status: http.StatusBadRequest}
	}

	var dob time.Time
	if req.DOB != "" {
		t, err := time.Parse(DateLayout, req.DOB)
		if err != nil {
			return &StatusError{Err: ErrInvalidDOB, Status: http.StatusBadRequest}
		}
		dob = t
	}

	account, err := NewAccount(s.hasher, req.Name, req.UID, req.Password, dob, s.now())
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return &StatusError{Err: ErrPasswordLength, Status: http.StatusBadRequest}
	}
	if err != nil {
		return err
	}

	account, err = s.db.CreateAccount(r.Context(), account)
	if errors.Is(err, ErrConflict) {
		return &StatusError{Err: ErrUserExists, Status: http.StatusConflict}
	}
	if err != nil {
		return err
	}

	slog.Info("Registered a user", "id", account.ID, "uid", account.UID)

	return writeText(w, registeredMessage)
}

type UploadImageRequest struct {
	UserID int64   `json:"user_id"`
	Note   string  `json:"note"`
	Image  *string `json:"image"`
}

func (s *APIServer) HandleUploadImage(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req UploadImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	if req.UserID == 0 || req.Note == "" {
		return &StatusError{Err: ErrMissingFields, Status: http.StatusBadRequest}
	}

	var post Post

	// The image is written again through the update path; the row count
	// stays at one and a failed second write leaves no row behind.
	err := s.db.WithTx(r.Context(), func(q *Queries) error {
		var err error
		post, err = q.CreatePost(r.Context(), NewPost{UserID: req.UserID, Note: req.Note, Image: req.Image})
		if err != nil {
			return err
		}

		return q.UpdatePostImage(r.Context(), post.ID, req.Image)
	})
	if errors.Is(err, ErrUnknownAccount) {
		return &StatusError{Err: ErrUserNotFound, Status: http.StatusNotFound}
	}
	if err != nil {
		return err
	}

	slog.Debug("Saved an image post", "post_id", post.ID, "user_id", post.UserID, "has_image", post.Image != nil)

	return writeText(w, uploadedMessage)
}

func (s *APIServer) HandleListUsers(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	accounts, err := s.db.ListAccounts(r.Context())
	if err != nil {
		return err
	}

	today := s.now()
	views := make([]AccountView, 0, len(accounts))

	for _, a := range accounts {
		a.Posts, err = s.db.ListPostsByUser(r.Context(), a.ID)
		if err != nil {
			return err
		}

		views = append(views, NewAccountView(a, today))
	}

	return writeJSON(w, views)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &StatusError{Err: err, Status: http.StatusRequestEntityTooLarge}
		}

		return &StatusError{Err: ErrInvalidPayload, Status: http.StatusBadRequest}
	}

	return nil
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	return json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, msg string) error {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")

	_, err := io.WriteString(w, msg)
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logMiddleware tags every request with an id and logs it once it is served.
func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("Handled a request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}
