package papertweets

import "encoding/json"

// Status is a tweet as returned by the v1.1 REST API. Raw holds the exact JSON
// the status was decoded from so it can be persisted untouched.
type Status struct {
	ID              int64    `json:"id"`
	IDStr           string   `json:"id_str"`
	Text            string   `json:"text"`
	FullText        string   `json:"full_text"`
	CreatedAt       string   `json:"created_at"`
	User            User     `json:"user"`
	Entities        Entities `json:"entities"`
	RetweetedStatus *Status  `json:"retweeted_status"`

	Raw json.RawMessage `json:"-"`
}

// User is the poster of a Status.
type User struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`

	Raw json.RawMessage `json:"-"`
}

type Entities struct {
	URLs []URLEntity `json:"urls"`
}

type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

func (s *Status) UnmarshalJSON(data []byte) error {
	type status Status
	var v status
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Status(v)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (u *User) UnmarshalJSON(data []byte) error {
	type user User
	var v user
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*u = User(v)
	u.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Payload returns the JSON to persist for the status. Statuses built in code
// rather than decoded from the API are marshalled on demand.
func (s *Status) Payload() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(s)
}

// Profile is the User counterpart of Payload.
func (u *User) Profile() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	return json.Marshal(u)
}

// ExpandedURLs lists the expanded form of every URL entity on the status.
func (s *Status) ExpandedURLs() []string {
	urls := make([]string, 0, len(s.Entities.URLs))
	for _, u := range s.Entities.URLs {
		if u.ExpandedURL != "" {
			urls = append(urls, u.ExpandedURL)
		}
	}
	return urls
}

// RateLimits mirrors /1.1/application/rate_limit_status.json.
type RateLimits struct {
	Resources map[string]map[string]RateLimit `json:"resources"`
}

type RateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

type searchResponse struct {
	Statuses []Status `json:"statuses"`
}
