package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mun_dashboard/internal/logging"
	"mun_dashboard/internal/middleware"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/prep"
	"mun_dashboard/internal/service"
	"mun_dashboard/internal/session"
)

var notFoundErrors = []error{
	session.ErrParticipantNotFound,
	session.ErrMotionNotFound,
	session.ErrSpeakerNotFound,
	prep.ErrConferenceNotFound,
	prep.ErrIndexOutOfRange,
}

var badRequestErrors = []error{
	session.ErrEmptyInput,
	session.ErrInvalidStatus,
	session.ErrInvalidMotionType,
	session.ErrInvalidBallot,
	session.ErrInvalidFeedback,
	session.ErrInvalidDuration,
	session.ErrInvalidChecklist,
	session.ErrInvalidCrisisList,
	prep.ErrEmptyInput,
	prep.ErrUnknownChecklist,
	prep.ErrInvalidDate,
}

// statusFor 未知 id 對應 404、無效輸入 400、其餘狀態保持不變的操作 409
func statusFor(err error) int {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, persist.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, persist.ErrStale),
		errors.Is(err, session.ErrIllegalTransition),
		errors.Is(err, session.ErrPointNotVotable),
		errors.Is(err, session.ErrVoteInProgress),
		errors.Is(err, session.ErrNoVoteInProgress),
		errors.Is(err, session.ErrNotEligible),
		errors.Is(err, session.ErrAbstainNotAllowed),
		errors.Is(err, session.ErrNoMatchingStrike):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func identity(c *gin.Context) (service.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return id, ok
}
