package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Callback response format parsed by the sign-in popup
const (
	CallbackRegexpPattern = `auth\[code=(success|error);message=(.+)\]`
	CallbackCodeIndex     = 1
	CallbackMessageIndex  = 2
	CallbackSuccessCode   = "success"
	CallbackErrorCode     = "error"

	AdminTokenCookie = "admin_token"
	DefaultPageSize  = 32
)

const (
	RouteCallback = "/adobe_ims/oauth/callback"
	RouteProfile  = "/adobe_ims/user/profile"
	RouteLogout   = "/adobe_ims/user/logout"
	RouteSignIn   = "/adobe_ims/signin/config"
	RouteSearch   = "/adobe_stock/search"
	RouteDownload = "/adobe_stock/preview/download"
	RouteRelated  = "/adobe_stock/preview/related"
	RouteLicense  = "/adobe_stock/license"
	RouteQuota    = "/adobe_stock/license/quota"
	RouteHealth   = "/health"
)

type Server struct {
	ims        *ImsService
	assets     *AssetListService
	images     *ImageService
	config     *Config
	translator Translator
	logger     *zap.Logger
}

func NewServer(ims *ImsService, assets *AssetListService, images *ImageService, config *Config, translator Translator, logger *zap.Logger) *Server {
	return &Server{
		ims:        ims,
		assets:     assets,
		images:     images,
		config:     config,
		translator: translator,
		logger:     logger,
	}
}

// Routes registers every endpoint behind request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(RouteCallback, s.requireAdmin(s.HandleCallback))
	mux.HandleFunc(RouteProfile, s.requireAdmin(s.HandleProfile))
	mux.HandleFunc(RouteLogout, s.requireAdmin(s.HandleLogout))
	mux.HandleFunc(RouteSignIn, s.requireAdmin(s.HandleSignInConfig))
	mux.HandleFunc(RouteSearch, s.requireAdmin(s.HandleSearch))
	mux.HandleFunc(RouteDownload, s.requireAdmin(s.HandleDownload))
	mux.HandleFunc(RouteRelated, s.requireAdmin(s.HandleRelatedImages))
	mux.HandleFunc(RouteLicense, s.requireAdmin(s.HandleLicense))
	mux.HandleFunc(RouteQuota, s.requireAdmin(s.HandleQuota))
	mux.HandleFunc(RouteHealth, s.HandleHealth)

	return s.logRequests(mux)
}

type uiResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Result       any    `json:"result,omitempty"`
}

func (s *Server) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondCallback(w, CallbackErrorCode, s.translator.Sprintf(MsgCallbackCodeMissing))
		return
	}

	if _, err := s.ims.Login(r.Context(), code); err != nil {
		s.critical(r.Context(), "IMS login failed", err)
		respondCallback(w, CallbackErrorCode, s.translator.Sprintf(MsgLoginFailed))
		return
	}

	respondCallback(w, CallbackSuccessCode, s.translator.Sprintf(MsgLoginSuccessful))
}

func (s *Server) HandleProfile(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	profile, err := s.ims.GetProfile(r.Context())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondJSON(w, http.StatusBadRequest, uiResponse{Message: s.translator.Sprintf(MsgNotAuthorized)})
			return
		}
		s.critical(r.Context(), "get user data failed", err)
		respondJSON(w, http.StatusInternalServerError, uiResponse{Message: s.translator.Sprintf(MsgProfileFailed)})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"error_message": "",
		"result": map[string]string{
			"email": profile.Email,
			"name":  profile.Name,
			"image": profile.Image,
		},
	})
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.ims.Logout(r.Context()); err != nil {
		s.critical(r.Context(), "logout failed", err)
		respondJSON(w, http.StatusInternalServerError, uiResponse{Message: s.translator.Sprintf(MsgLogoutFailed)})
		return
	}

	respondJSON(w, http.StatusOK, uiResponse{Success: true})
}

func (s *Server) HandleSignInConfig(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"component":  "Magento_AdobeIms/js/signIn",
		"template":   "Magento_AdobeIms/signIn",
		"profileUrl": RouteProfile,
		"logoutUrl":  RouteLogout,
		"user":       s.signInUserData(r.Context()),
		"loginConfig": map[string]any{
			"url": s.config.SignIn.AuthURL,
			"callbackParsingParams": map[string]any{
				"regexpPattern": CallbackRegexpPattern,
				"codeIndex":     CallbackCodeIndex,
				"messageIndex":  CallbackMessageIndex,
				"successCode":   CallbackSuccessCode,
				"errorCode":     CallbackErrorCode,
			},
		},
	})
}

func (s *Server) signInUserData(ctx context.Context) map[string]any {
	defaults := map[string]any{
		"isAuthorized": false,
		"name":         "",
		"email":        "",
		"image":        s.config.SignIn.DefaultProfileImage,
	}

	if !s.ims.IsAuthorized(ctx) {
		return defaults
	}

	lookup := s.ims.LookupProfile(ctx)
	if lookup.Status != LookupFound {
		return defaults
	}

	return map[string]any{
		"isAuthorized": true,
		"name":         lookup.Profile.Name,
		"email":        lookup.Profile.Email,
		"image":        lookup.Profile.Image,
	}
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = DefaultPageSize
	}

	criteria := NewSearchCriteria().SetPage(page, limit)
	criteria.Words = query.Get("words")
	if mediaID := query.Get(AttributeMediaID); mediaID != "" {
		id, err := strconv.ParseInt(mediaID, 10, 64)
		if err != nil {
			s.respondInvalid(w, "media_id must be an integer")
			return
		}
		criteria.AddFilter(AttributeMediaID, id, ConditionEq)
	}

	result, err := s.assets.Search(r.Context(), criteria)
	if err != nil {
		s.critical(r.Context(), "asset search failed", err)
		respondJSON(w, http.StatusInternalServerError, uiResponse{Message: s.translator.Sprintf(MsgSearchFailed)})
		return
	}

	respondJSON(w, http.StatusOK, uiResponse{Success: true, Result: result})
}

type saveImageRequest struct {
	MediaID         int64  `json:"media_id"`
	DestinationPath string `json:"destination_path"`
}

func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req saveImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MediaID <= 0 {
		s.respondInvalid(w, "media_id must be a positive integer")
		return
	}

	_, err := s.images.SavePreview(r.Context(), req.MediaID, req.DestinationPath)
	if err != nil {
		s.respondSaveError(w, r, err, MsgDownloadFailed)
		return
	}

	respondJSON(w, http.StatusOK, uiResponse{Success: true, Message: s.translator.Sprintf(MsgDownloadSuccessful)})
}

func (s *Server) HandleLicense(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req saveImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MediaID <= 0 {
		s.respondInvalid(w, "media_id must be a positive integer")
		return
	}

	_, err := s.images.License(r.Context(), req.MediaID, req.DestinationPath)
	if err != nil {
		s.respondSaveError(w, r, err, MsgLicenseFailed)
		return
	}

	respondJSON(w, http.StatusOK, uiResponse{Success: true, Message: s.translator.Sprintf(MsgLicenseSuccessful)})
}

func (s *Server) respondSaveError(w http.ResponseWriter, r *http.Request, err error, genericMessage string) {
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("image not found", zap.Error(err), zap.Bool("ambiguous", errors.Is(err, ErrAmbiguousMatch)))
		respondJSON(w, http.StatusBadRequest, uiResponse{Message: s.translator.Sprintf(MsgImageNotFound)})
	case errors.Is(err, ErrInvalidArgument):
		s.respondInvalid(w, err.Error())
	case errors.Is(err, ErrUnauthorized):
		respondJSON(w, http.StatusUnauthorized, uiResponse{Message: s.translator.Sprintf(MsgNotAuthorized)})
	default:
		s.critical(r.Context(), s.translator.Sprintf(MsgDownloadFailedLog, err.Error()), err)
		respondJSON(w, http.StatusInternalServerError, uiResponse{Message: s.translator.Sprintf(genericMessage)})
	}
}

func (s *Server) HandleQuota(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	quota, err := s.images.GetQuota(r.Context())
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			respondJSON(w, http.StatusUnauthorized, uiResponse{Message: s.translator.Sprintf(MsgNotAuthorized)})
			return
		}
		s.critical(r.Context(), "get quota failed", err)
		respondJSON(w, http.StatusInternalServerError, uiResponse{Message: s.translator.Sprintf(MsgQuotaFailed)})
		return
	}

	respondJSON(w, http.StatusOK, uiResponse{Success: true, Result: quota})
}

func (s *Server) HandleRelatedImages(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	imageID, err := strconv.ParseInt(query.Get("image_id"), 10, 64)
	if err != nil {
		s.respondInvalid(w, "image_id must be an integer")
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))

	related, err := s.images.GetRelatedImages(r.Context(), imageID, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			s.respondInvalid(w, err.Error())
			return
		}
		s.critical(r.Context(), "get related images failed", err)
		respondJSON(w, http.StatusInternalServerError, uiResponse{Message: s.translator.Sprintf(MsgRelatedFailed)})
		return
	}

	respondJSON(w, http.StatusOK, uiResponse{
		Success: true,
		Message: s.translator.Sprintf(MsgRelatedSuccessful),
		Result:  related,
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Helper functions

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractAdminToken(r)
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, uiResponse{Message: s.translator.Sprintf(MsgInvalidSession)})
			return
		}

		userID, err := ValidateAdminToken(token, &s.config.JWT)
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, uiResponse{Message: s.translator.Sprintf(MsgInvalidSession)})
			return
		}

		next(w, r.WithContext(WithAdminUserID(r.Context(), userID)))
	}
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// critical logs the original error text; users only see a generic message.
func (s *Server) critical(ctx context.Context, msg string, err error) {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	s.logger.Error(msg,
		zap.String("severity", "critical"),
		zap.String("request_id", requestID),
		zap.Error(err),
	)
}

func (s *Server) respondInvalid(w http.ResponseWriter, detail string) {
	respondJSON(w, http.StatusBadRequest, uiResponse{Message: s.translator.Sprintf(MsgInvalidRequest, detail)})
}

func validateMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondJSON(w, http.StatusBadRequest, uiResponse{Message: "Invalid request body"})
		return false
	}
	return true
}

func extractAdminToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if cookie, err := r.Cookie(AdminTokenCookie); err == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return parts[1], nil
}

func respondCallback(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "auth[code=%s;message=%s]", code, message)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
