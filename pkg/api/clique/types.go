package clique

import (
	"github.com/clique-discord/clique/pkg/api/common"
	"github.com/clique-discord/clique/pkg/models"
)

// PointsResponse represents the response from GetPoints: per-period pair
// counts in ascending period order.
type PointsResponse = []models.PeriodAggregate

// UserResponse represents the response from GetUser
type UserResponse = models.User

// GranularitiesResponse represents the response from GetGranularities
type GranularitiesResponse struct {
	Granularities []string `json:"granularities"`
}

// ErrorResponse is a type alias to the common error response
type ErrorResponse = common.ErrorResponse

// Stable error codes returned by the API.
const (
	CodeInvalidGranularity = "invalid_granularity"
	CodeInvalidTimeBound   = "invalid_time_bound"
	CodeInvalidGuild       = "invalid_guild"
	CodeInvalidUserID      = "invalid_user_id"
	CodeUserNotFound       = "user_not_found"
	CodeDatabaseError      = "database_error"
)
