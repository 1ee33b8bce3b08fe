package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50"`
}

// Size clamps the requested page size into [1, max], using def when unset.
func (p Pagination) Size(def, max int) int {
	switch {
	case p.PageSize <= 0:
		return def
	case p.PageSize > max:
		return max
	default:
		return p.PageSize
	}
}

// Cursor is the opaque page token payload. Snowflake ids are time-ordered,
// so the id of the last row returned is enough to resume.
type Cursor struct {
	ID string `json:"id"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(id snowflake.ID) string {
	b, _ := json.Marshal(Cursor{ID: id.String()})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor returns nil for an empty token.
func DecodeCursor(token string) (*snowflake.ID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(cursor.ID))
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

// Page trims rows fetched with limit+1 back to limit. The extra row only
// signals that another page exists.
func Page[T any](rows []*T, limit int, idOf func(*T) snowflake.ID) ([]*T, PageInfo) {
	if limit <= 0 || len(rows) <= limit {
		return rows, PageInfo{}
	}
	rows = rows[:limit]
	return rows, PageInfo{
		HasMore:       true,
		NextPageToken: EncodeCursor(idOf(rows[len(rows)-1])),
	}
}
