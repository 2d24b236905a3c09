package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	query := r.URL.Query()
	limit := defaultLimit
	offset := 0
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(query.Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Limit: limit, Offset: offset}
}

// ParseBool reads a boolean query flag, treating anything unparsable as false.
func ParseBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func SetTotalCount(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}
