package viewer

import (
	"net/url"
	"strings"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/rs/zerolog"
)

// TargetFromURL extracts the user_id query parameter from raw. A missing or
// unparsable value is logged and yields "".
func TargetFromURL(raw string, logger zerolog.Logger) string {
	u, err := url.Parse(raw)
	if err != nil {
		logger.Error().Err(err).Str("url", raw).Msg("Failed to parse viewer URL")
		return ""
	}
	return TargetFromQuery(u.Query(), logger)
}

// TargetFromQuery extracts user_id from q, logging when it is absent.
func TargetFromQuery(q url.Values, logger zerolog.Logger) string {
	target := strings.TrimSpace(q.Get(constants.QueryUserID))
	if target == "" {
		logger.Error().Str("param", constants.QueryUserID).Msg("Target user id missing from URL")
	}
	return target
}
