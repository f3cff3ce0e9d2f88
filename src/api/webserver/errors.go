package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/dao-governance/src/governance"
)

func statusFor(kind governance.Kind) int {
	switch kind {
	case governance.KindInvalidParameter:
		return http.StatusBadRequest
	case governance.KindUnauthorized:
		return http.StatusForbidden
	case governance.KindNotFound:
		return http.StatusNotFound
	case governance.KindStateConflict:
		return http.StatusConflict
	case governance.KindTemporalGuard, governance.KindThresholdNotMet:
		return http.StatusUnprocessableEntity
	case governance.KindDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err in the {"err", "code"} shape. Internal errors
// keep their detail out of the response.
func abortWithError(c *gin.Context, err error) {
	code := governance.CodeOf(err)
	status := statusFor(code.Kind())
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"err": msg, "code": code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"err": err.Error(), "code": governance.CodeInvalidParameter})
}
