package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiko-poker/backend/internal/models"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool             `json:"success"`
	Data    interface{}      `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
	Kind    models.ErrorKind `json:"kind,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 for input that never reached the store.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Kind: models.KindInvalidArgument})
}

// Error sends the status matching the error's kind. Internal errors hide their message.
func Error(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := StatusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, Body{Success: false, Error: msg, Kind: kind})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidArgument, models.KindProtocolError:
		return http.StatusBadRequest
	case models.KindInvalidPhase:
		return http.StatusConflict
	case models.KindExpired:
		return http.StatusGone
	case models.KindResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
