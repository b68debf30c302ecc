package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/spacesedan/xpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id, text string, score *float64) models.Post {
	p := models.Post{ID: id, Text: text}
	if score != nil {
		p.Sentiment = &models.SentimentResult{Score: *score, Label: models.LabelFromScore(*score)}
	}
	return p
}

func f(v float64) *float64 { return &v }

func TestCalculateStats(t *testing.T) {
	posts := []models.Post{
		{
			Author:    models.Author{Username: "small", FollowersCount: 10},
			Metrics:   models.Metrics{Likes: 5, Retweets: 2, Replies: 1, QuoteTweets: 100},
			Sentiment: &models.SentimentResult{Score: 0.8},
		},
		{
			Author:  models.Author{Username: "big", FollowersCount: 5000},
			Metrics: models.Metrics{Likes: 10},
		},
		{
			Author:    models.Author{Username: "mid", FollowersCount: 300},
			Sentiment: &models.SentimentResult{Score: -0.4},
		},
	}
	trends := []models.TrendTopic{{Keyword: "launch"}, {Keyword: "rocket"}}

	got := CalculateStats(posts, trends)

	assert.Equal(t, 3, got.TotalPosts)
	assert.InDelta(t, 0.2, got.AverageSentiment, 1e-9)
	assert.Equal(t, 18, got.TotalEngagement)
	assert.Equal(t, 2, got.TrendingTopics)
	require.NotNil(t, got.TopInfluencer)
	assert.Equal(t, models.Influencer{Username: "big", Followers: 5000}, *got.TopInfluencer)
}

func TestCalculateStats_Empty(t *testing.T) {
	got := CalculateStats(nil, nil)

	assert.Equal(t, models.DashboardStats{}, got)
}

func TestKeywords(t *testing.T) {
	got := Keywords("The NEW rocket launch, from SpaceX!! isn't it great? #launch")

	assert.Equal(t, []string{"rocket", "launch", "spacex", "great", "launch"}, got)
}

func TestDetectTrends(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	posts := []models.Post{
		post("1", "Rocket launch today, launch launch!", f(0.8)),
		post("2", "The launch was delayed", f(-0.6)),
		post("3", "Rocket engines look great", nil),
		post("4", "Great weather for a launch", f(0.1)),
		post("5", "Nothing trending here", f(0.1)),
	}

	trends := DetectTrends(posts, now)

	require.Len(t, trends, 3)

	assert.Equal(t, "launch", trends[0].Keyword)
	assert.Equal(t, 3, trends[0].Volume, "repeated words count once per post")
	assert.InDelta(t, 0.1, trends[0].Sentiment.Score, 1e-9)
	assert.Equal(t, models.LabelNeutral, trends[0].Sentiment.Label)
	assert.InDelta(t, 0.1, trends[0].Sentiment.Confidence, 1e-9)
	assert.Equal(t, now, trends[0].LastUpdated)
	assert.Zero(t, trends[0].GrowthRate)

	assert.Equal(t, "rocket", trends[1].Keyword)
	assert.Equal(t, 2, trends[1].Volume)
	assert.InDelta(t, 0.8, trends[1].Sentiment.Score, 1e-9, "unscored posts are left out of the average")
	assert.Equal(t, models.LabelPositive, trends[1].Sentiment.Label)

	assert.Equal(t, "great", trends[2].Keyword)
	assert.Equal(t, []string{"3", "4"}, []string{trends[2].Posts[0].ID, trends[2].Posts[1].ID})
	assert.InDelta(t, 0.1, trends[2].Sentiment.Score, 1e-9)
}

func TestDetectTrends_UnscoredPostsAverageToZero(t *testing.T) {
	posts := []models.Post{
		post("1", "quiet morning", nil),
		post("2", "another quiet evening", nil),
	}

	trends := DetectTrends(posts, time.Now())

	require.Len(t, trends, 1)
	assert.Equal(t, "quiet", trends[0].Keyword)
	assert.Zero(t, trends[0].Sentiment.Score)
	assert.Equal(t, models.LabelNeutral, trends[0].Sentiment.Label)
}

func TestDetectTrends_CapsAtTen(t *testing.T) {
	var posts []models.Post
	for i := range 15 {
		word := fmt.Sprintf("keyword%c", 'a'+i)
		posts = append(posts, post("x", word, f(0)), post("y", word, f(0)))
	}

	trends := DetectTrends(posts, time.Now())

	require.Len(t, trends, MAX_TRENDS)
	assert.Equal(t, "keyworda", trends[0].Keyword)
}

func TestDetectTrends_NoRepeats(t *testing.T) {
	trends := DetectTrends([]models.Post{post("1", "unique words only", nil)}, time.Now())

	assert.Empty(t, trends)
}
