package source

import (
	"context"
	"net/url"

	"schedulebot/internal/schedcache"
	"schedulebot/internal/timetable"
)

// TimetableURL is the group page for key. The code form is preferred because
// it survives id renumbering between semesters.
func (c *Client) TimetableURL(key schedcache.Key) string {
	q := url.Values{}
	if key.Code != "" {
		q.Set("n", key.Code)
	} else {
		q.Set("id", key.ID)
	}
	return c.url(timetablePath, q)
}

// FetchTimetable downloads and assembles the timetable of one group. It is the
// schedcache fetcher.
func (c *Client) FetchTimetable(ctx context.Context, key schedcache.Key) (timetable.Timetable, error) {
	if key.IsZero() {
		return timetable.Timetable{}, schedcache.ErrInvalidKey
	}
	doc, err := c.document(ctx, c.TimetableURL(key))
	if err != nil {
		return timetable.Timetable{}, err
	}
	return timetable.AssembleDocument(doc), nil
}
