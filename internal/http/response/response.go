package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/platform/apierr"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
)

const problemTypeBase = "https://errors.planner.dev/"

// Problem is an RFC 9457 problem body. Error mirrors Detail for clients that
// only read a flat error string.
type Problem struct {
	Type              string                `json:"type"`
	Title             string                `json:"title"`
	Status            int                   `json:"status"`
	Detail            string                `json:"detail"`
	Instance          string                `json:"instance"`
	RequestID         string                `json:"requestId,omitempty"`
	Code              string                `json:"code"`
	RetryAfterSeconds int                   `json:"retryAfterSeconds,omitempty"`
	Issues            []contract.FieldIssue `json:"issues,omitempty"`
	Error             string                `json:"error"`
}

// NewProblem maps err onto a problem body. Details of internal errors are
// not exposed.
func NewProblem(c *gin.Context, err error) Problem {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.Internal(errors.New("unknown error"))
	}
	detail := ae.Error()
	if ae.Status >= http.StatusInternalServerError {
		detail = "the request could not be completed"
	}
	p := Problem{
		Type:              problemTypeBase + ae.Code,
		Title:             http.StatusText(ae.Status),
		Status:            ae.Status,
		Detail:            detail,
		Instance:          c.Request.URL.Path,
		RequestID:         ctxutil.RequestID(c.Request.Context()),
		Code:              ae.Code,
		RetryAfterSeconds: ae.RetryAfter,
		Error:             detail,
	}
	var ve *contract.ValidationError
	if errors.As(err, &ve) {
		p.Issues = ve.Issues
	}
	return p
}

// RespondProblem writes err as application/problem+json and aborts the chain.
func RespondProblem(c *gin.Context, err error) {
	p := NewProblem(c, err)
	if p.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(p.RetryAfterSeconds))
	}
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(p.Status, p)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
