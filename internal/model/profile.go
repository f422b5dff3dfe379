package model

// Profile is the normalized shape of one TikTok account discovered for a
// topic. Numeric counts use pointers so a value the provider never sent is
// distinguishable from a real zero.
type Profile struct {
	Topic      string  `json:"topic"`
	Username   string  `json:"username"`
	ProfileURL string  `json:"profile_url"`
	Followers  *int64  `json:"followers"`
	Likes      *int64  `json:"likes"`
	Following  *int64  `json:"following"`
	Friends    *int64  `json:"friends"`
	VideoCount *int64  `json:"video_count"`
	Bio        string  `json:"bio"`
	Email      *string `json:"email"`
	HasEmail   bool    `json:"has_email"`
}

// SetEmail records an extracted contact email. Empty means none was found.
func (p *Profile) SetEmail(email string) {
	if email == "" {
		p.Email = nil
		p.HasEmail = false
		return
	}
	p.Email = &email
	p.HasEmail = true
}

// ResultSet accumulates per-topic profiles, remembering the order in which
// topics were first added. Not safe for concurrent use; the pipeline merges
// results from a single goroutine.
type ResultSet struct {
	order  []string
	topics map[string][]Profile
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{topics: make(map[string][]Profile)}
}

// Add appends profiles under a topic. The topic keeps the position of its
// first Add.
func (rs *ResultSet) Add(topic string, profiles []Profile) {
	if _, ok := rs.topics[topic]; !ok {
		rs.order = append(rs.order, topic)
	}
	rs.topics[topic] = append(rs.topics[topic], profiles...)
}

// Topics returns the topics in insertion order.
func (rs *ResultSet) Topics() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Get returns the profiles recorded for a topic.
func (rs *ResultSet) Get(topic string) []Profile {
	return rs.topics[topic]
}

// Len returns the total number of profiles across all topics.
func (rs *ResultSet) Len() int {
	n := 0
	for _, ps := range rs.topics {
		n += len(ps)
	}
	return n
}

// Flatten returns every profile, topics in insertion order, profiles in
// provider order within each topic.
func (rs *ResultSet) Flatten() []Profile {
	out := make([]Profile, 0, rs.Len())
	for _, topic := range rs.order {
		out = append(out, rs.topics[topic]...)
	}
	return out
}
