package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/platform/apierr"
)

// ParseListOptions reads the shared list filters every dataset endpoint
// accepts: most_recent (a bare flag, no value allowed) and ids (integer
// record numbers, repeated or comma-separated).
func ParseListOptions(params url.Values) (repos.ExecOptions, error) {
	var opts repos.ExecOptions

	if params.Has("most_recent") {
		if params.Get("most_recent") != "" {
			return opts, apierr.BadRequest("bad_param", "most_recent takes no value")
		}
		opts.MostRecent = true
	}

	if params.Has("ids") {
		ids := make([]int64, 0)
		for _, raw := range params["ids"] {
			for _, part := range strings.Split(raw, ",") {
				id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
				if err != nil {
					return opts, apierr.BadRequest("bad_param", "ids must be integer record numbers")
				}
				ids = append(ids, id)
			}
		}
		opts.IDs = ids
	}

	return opts, nil
}
