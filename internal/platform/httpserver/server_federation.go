package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/domain/services"
	httptransport "fedsync/contexts/federation/replication-service/transport/http"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

const (
	maxEventBodyBytes    = 1 << 20
	maxSnapshotBodyBytes = 32 << 20
)

func (s *Server) handleFederationReceiveEvent(w http.ResponseWriter, r *http.Request) {
	req, ok := readSignedRequest(w, r, maxEventBodyBytes)
	if !ok {
		return
	}
	resp, err := s.federation.Handler.ReceiveEventHandler(r.Context(), req)
	if err != nil {
		s.writeFederationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFederationGetSnapshot(w http.ResponseWriter, r *http.Request) {
	messagesPerChannel := 0
	if raw := r.URL.Query().Get("messages_per_channel"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeFederationError(w, http.StatusBadRequest, httptransport.ErrorResponse{
				Code:    "invalid_request",
				Message: "messages_per_channel must be a positive integer",
			})
			return
		}
		messagesPerChannel = parsed
	}

	req, ok := readSignedRequest(w, r, 0)
	if !ok {
		return
	}
	resp, err := s.federation.Handler.GetSnapshotHandler(r.Context(), req, r.PathValue("server_id"), messagesPerChannel)
	if err != nil {
		s.writeFederationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFederationImportSnapshot(w http.ResponseWriter, r *http.Request) {
	req, ok := readSignedRequest(w, r, maxSnapshotBodyBytes)
	if !ok {
		return
	}
	resp, err := s.federation.Handler.ImportSnapshotHandler(r.Context(), req)
	if err != nil {
		s.writeFederationDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readSignedRequest collects the signed material. The body is kept as raw
// bytes because the signature covers it verbatim. A limit of 0 skips the
// body entirely.
func readSignedRequest(w http.ResponseWriter, r *http.Request, limit int64) (services.SignedRequest, bool) {
	req := services.SignedRequest{
		Domain:    strings.TrimSpace(r.Header.Get(federationv1.HeaderDomain)),
		Method:    r.Method,
		Path:      r.URL.EscapedPath(),
		Timestamp: strings.TrimSpace(r.Header.Get(federationv1.HeaderTimestamp)),
		KeyID:     strings.TrimSpace(r.Header.Get(federationv1.HeaderKeyID)),
		Signature: strings.TrimSpace(r.Header.Get(federationv1.HeaderSignature)),
	}
	if req.Domain == "" || req.Timestamp == "" || req.KeyID == "" || req.Signature == "" {
		writeFederationError(w, http.StatusUnauthorized, httptransport.ErrorResponse{
			Code:    "unauthorized",
			Message: "federation signature headers are required",
		})
		return services.SignedRequest{}, false
	}
	if limit == 0 {
		return req, true
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFederationError(w, http.StatusRequestEntityTooLarge, httptransport.ErrorResponse{
				Code:    "payload_too_large",
				Message: "request body exceeds " + strconv.FormatInt(limit, 10) + " bytes",
			})
			return services.SignedRequest{}, false
		}
		writeFederationError(w, http.StatusBadRequest, httptransport.ErrorResponse{
			Code:    "invalid_request",
			Message: "request body could not be read",
		})
		return services.SignedRequest{}, false
	}
	req.Body = string(body)
	return req, true
}

func (s *Server) writeFederationDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var gap *domainerrors.SequenceGapError
	switch {
	case errors.Is(err, domainerrors.ErrUnauthorized):
		writeFederationError(w, http.StatusUnauthorized, httptransport.ErrorResponse{
			Code:    "unauthorized",
			Message: err.Error(),
		})
	case errors.As(err, &gap):
		writeFederationError(w, http.StatusConflict, httptransport.ErrorResponse{
			Code:             "sequence_gap",
			Message:          err.Error(),
			Retryable:        true,
			ExpectedSequence: gap.Expected,
		})
	case errors.Is(err, domainerrors.ErrUnknownEventType):
		writeFederationError(w, http.StatusUnprocessableEntity, httptransport.ErrorResponse{
			Code:    "unknown_event_type",
			Message: err.Error(),
		})
	case errors.Is(err, domainerrors.ErrMalformedPayload),
		errors.Is(err, domainerrors.ErrUnsupportedSnapshotVersion),
		errors.Is(err, domainerrors.ErrInvalidRequest):
		writeFederationError(w, http.StatusBadRequest, httptransport.ErrorResponse{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, domainerrors.ErrOriginMismatch):
		writeFederationError(w, http.StatusForbidden, httptransport.ErrorResponse{
			Code:    "origin_mismatch",
			Message: err.Error(),
		})
	case errors.Is(err, domainerrors.ErrServerNotFound),
		errors.Is(err, domainerrors.ErrNotLocalServer):
		writeFederationError(w, http.StatusNotFound, httptransport.ErrorResponse{
			Code:    "not_found",
			Message: domainerrors.ErrServerNotFound.Error(),
		})
	default:
		s.logger.Error("federation request failed",
			"event", "http_federation_request_failed",
			"module", moduleName,
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", resolveClientIP(r),
			"error", err.Error(),
		)
		writeFederationError(w, http.StatusInternalServerError, httptransport.ErrorResponse{
			Code:    "internal_error",
			Message: "internal server error",
		})
	}
}

func writeFederationError(w http.ResponseWriter, status int, payload httptransport.ErrorResponse) {
	writeJSON(w, status, payload)
}
