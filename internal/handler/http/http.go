package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/entity"
	"github.com/jgivc/tracksearch/internal/service/discography"
	"github.com/jgivc/tracksearch/internal/service/search"
)

type SessionService interface {
	Login(ctx context.Context, creds entity.Credentials) *entity.LoginResult
	Logout(ctx context.Context) error
	Status() entity.SessionState
}

type SearchService interface {
	Execute(ctx context.Context, req search.Request, progress chan<- entity.SearchProgress) (*entity.SearchResponse, error)
}

type ScanService interface {
	Scan(ctx context.Context, req discography.Request, progress chan<- entity.ScanProgress) (*entity.DiscographySearchResponse, error)
}

type CacheFlusher interface {
	Flush(ctx context.Context) error
}

type ProfileDoc interface {
	PageHTML() []byte
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func NewLoginHandler(srv SessionService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "LoginHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var creds entity.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		res := srv.Login(r.Context(), creds)
		if res.Success {
			writeJSON(w, http.StatusOK, res)

			return
		}

		log.Warn("Login rejected", slog.String("reason", string(res.Reason)))

		switch res.Reason {
		case entity.ReasonMissingCredentials:
			writeJSON(w, http.StatusBadRequest, res)
		case entity.ReasonNetworkError:
			writeJSON(w, http.StatusBadGateway, res)
		default:
			writeJSON(w, http.StatusUnauthorized, res)
		}
	}
}

func NewLogoutHandler(srv SessionService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "LogoutHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Logout(r.Context()); err != nil {
			log.Error("Cannot logout", slog.Any("error", err))
			http.Error(w, "Cannot logout", http.StatusInternalServerError)

			return
		}

		w.Write([]byte("done"))
	}
}

func NewStatusHandler(srv SessionService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, srv.Status())
	}
}

func NewSearchHandler(srv SearchService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SearchHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := parseSearchRequest(r)
		if !ok {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		resp, err := srv.Execute(r.Context(), req, nil)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrSearchHasAlreadyStarted):
				http.Error(w, "Search has already started", http.StatusConflict)
			case errors.Is(err, common.ErrNotLoggedIn):
				http.Error(w, "Not logged in", http.StatusUnauthorized)
			default:
				log.Error("Cannot execute search", slog.Any("error", err))
				http.Error(w, "Cannot execute search", http.StatusInternalServerError)
			}

			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func parseSearchRequest(r *http.Request) (search.Request, bool) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		return search.Request{}, false
	}

	req := search.Request{
		Query: query,
		Filters: entity.SearchFilters{
			Format:     q.Get("format"),
			Categories: q["category"],
		},
		Sort: entity.SearchSort{
			Field: entity.SortRelevance,
			Desc:  true,
		},
	}

	req.Filters.MinSeeders, _ = strconv.Atoi(q.Get("min_seeders"))
	req.Filters.MinSizeMB, _ = strconv.ParseFloat(q.Get("min_size_mb"), 64)
	req.Filters.MaxSizeMB, _ = strconv.ParseFloat(q.Get("max_size_mb"), 64)

	if s := q.Get("sort"); s != "" {
		req.Sort.Field = entity.SortField(s)
	}
	if q.Get("order") == "asc" {
		req.Sort.Desc = false
	}

	req.Pagination.MaxPages, _ = strconv.Atoi(q.Get("max_pages"))
	req.Pagination.ConcurrentPages, _ = strconv.Atoi(q.Get("concurrency"))

	return req, true
}

type scanRequest struct {
	Candidates     []entity.SearchResult `json:"candidates"`
	Album          string                `json:"album"`
	Artist         string                `json:"artist"`
	MaxConcurrent  int                   `json:"max_concurrent"`
	PageTimeoutSec int                   `json:"page_timeout_sec"`
}

func NewScanHandler(srv ScanService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ScanHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var body scanRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Album == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		resp, err := srv.Scan(r.Context(), discography.Request{
			Candidates:    body.Candidates,
			Album:         body.Album,
			Artist:        body.Artist,
			MaxConcurrent: body.MaxConcurrent,
			PageTimeout:   time.Duration(body.PageTimeoutSec) * time.Second,
		}, nil)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrNotLoggedIn):
				http.Error(w, "Not logged in", http.StatusUnauthorized)
			default:
				log.Error("Cannot scan pages", slog.Any("error", err))
				http.Error(w, "Cannot scan pages", http.StatusInternalServerError)
			}

			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func NewCacheFlushHandler(srv CacheFlusher, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CacheFlushHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Flush(r.Context()); err != nil {
			log.Error("Cannot flush cache", slog.Any("error", err))
			http.Error(w, "Cannot flush cache", http.StatusInternalServerError)

			return
		}

		w.Write([]byte("done"))
	}
}

func NewProfileHandler(doc ProfileDoc, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ProfileHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(doc.PageHTML())
	}
}
