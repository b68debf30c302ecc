package models

import "time"

type Post struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Author    Author           `json:"author"`
	Metrics   Metrics          `json:"metrics"`
	Timestamp time.Time        `json:"timestamp"`
	MediaURLs []string         `json:"media_urls,omitempty"`
	Sentiment *SentimentResult `json:"sentiment,omitempty"`
}

type Author struct {
	Username       string `json:"username"`
	Name           string `json:"name"`
	FollowersCount int    `json:"followers_count,omitempty"`
}

type Metrics struct {
	Likes       int `json:"likes"`
	Retweets    int `json:"retweets"`
	Replies     int `json:"replies"`
	QuoteTweets int `json:"quote_tweets"`
}

func (m Metrics) Engagement() int {
	return m.Likes + m.Retweets + m.Replies
}

type DashboardStats struct {
	TotalPosts       int         `json:"total_posts"`
	AverageSentiment float64     `json:"average_sentiment"`
	TotalEngagement  int         `json:"total_engagement"`
	TrendingTopics   int         `json:"trending_topics"`
	TopInfluencer    *Influencer `json:"top_influencer,omitempty"`
}

type Influencer struct {
	Username  string `json:"username"`
	Followers int    `json:"followers"`
}

type TrendTopic struct {
	Keyword     string          `json:"keyword"`
	Volume      int             `json:"volume"`
	Sentiment   SentimentResult `json:"sentiment"`
	Posts       []Post          `json:"posts"`
	GrowthRate  float64         `json:"growth_rate"`
	LastUpdated time.Time       `json:"last_updated"`
}
