package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"bid-analytics/models"
)

// ErrResponse is the JSON error body returned by every endpoint.
type ErrResponse struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func badRequest(msg string) *ErrResponse {
	return &ErrResponse{StatusCode: http.StatusBadRequest, ErrorCode: "INVALID_PARAMETER", Message: msg}
}

// errorResponse maps domain errors onto HTTP statuses.
func errorResponse(err error) *ErrResponse {
	var (
		retrieval   *models.RetrievalError
		quality     *models.DataQualityError
		malformed   *models.MalformedDatasetError
		unsupported *models.UnsupportedFormatError
		processing  *models.ProcessingError
	)
	switch {
	case errors.Is(err, models.ErrConcurrentLoad):
		return &ErrResponse{StatusCode: http.StatusConflict, ErrorCode: "LOAD_IN_PROGRESS", Message: err.Error()}
	case errors.As(err, &retrieval):
		return &ErrResponse{StatusCode: http.StatusBadGateway, ErrorCode: "RETRIEVAL_FAILED", Message: err.Error()}
	case errors.As(err, &quality):
		return &ErrResponse{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "DATA_QUALITY", Message: err.Error()}
	case errors.As(err, &malformed):
		return &ErrResponse{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "MALFORMED_DATASET", Message: err.Error()}
	case errors.Is(err, models.ErrEmptyDataset):
		return &ErrResponse{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "EMPTY_DATASET", Message: err.Error()}
	case errors.Is(err, models.ErrNoValidRecords):
		return &ErrResponse{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "NO_VALID_RECORDS", Message: err.Error()}
	case errors.As(err, &unsupported):
		return &ErrResponse{StatusCode: http.StatusBadRequest, ErrorCode: "UNSUPPORTED_FORMAT", Message: err.Error()}
	case errors.As(err, &processing):
		return &ErrResponse{StatusCode: http.StatusInternalServerError, ErrorCode: "PROCESSING_FAILED", Message: err.Error()}
	default:
		return &ErrResponse{StatusCode: http.StatusInternalServerError, ErrorCode: "INTERNAL_SERVER_ERROR", Message: err.Error()}
	}
}
