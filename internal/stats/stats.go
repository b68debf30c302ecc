package stats

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spacesedan/xpulse/internal/models"
)

const (
	MIN_KEYWORD_LENGTH = 4
	MIN_TREND_POSTS    = 2
	MAX_TRENDS         = 10
)

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the this that with from have been were will would could should about
		into through during after before above below between among under over near around what which who
		when where why how all each every both few more most other some such only very just also even still
		than then there these those they them their can may might must shall cannot cant dont doesnt isnt
		arent wasnt werent hasnt havent hadnt`) {
		stopwords[w] = struct{}{}
	}
}

// CalculateStats summarizes analyzed posts. The average covers only posts that
// carry a sentiment.
func CalculateStats(posts []models.Post, trends []models.TrendTopic) models.DashboardStats {
	stats := models.DashboardStats{
		TotalPosts:     len(posts),
		TrendingTopics: len(trends),
	}

	var sum float64
	var scored int
	for _, post := range posts {
		stats.TotalEngagement += post.Metrics.Engagement()

		if post.Sentiment != nil {
			sum += post.Sentiment.Score
			scored++
		}

		if stats.TopInfluencer == nil || post.Author.FollowersCount > stats.TopInfluencer.Followers {
			stats.TopInfluencer = &models.Influencer{
				Username:  post.Author.Username,
				Followers: post.Author.FollowersCount,
			}
		}
	}

	if scored > 0 {
		stats.AverageSentiment = sum / float64(scored)
	}
	return stats
}

// DetectTrends groups posts by shared keywords. A keyword needs at least
// MIN_TREND_POSTS posts; the busiest MAX_TRENDS are returned, ties kept in
// first-seen order.
func DetectTrends(posts []models.Post, now time.Time) []models.TrendTopic {
	byKeyword := make(map[string][]models.Post)
	var order []string

	for _, post := range posts {
		seen := make(map[string]struct{})
		for _, word := range Keywords(post.Text) {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}

			if _, ok := byKeyword[word]; !ok {
				order = append(order, word)
			}
			byKeyword[word] = append(byKeyword[word], post)
		}
	}

	var trends []models.TrendTopic
	for _, keyword := range order {
		matched := byKeyword[keyword]
		if len(matched) < MIN_TREND_POSTS {
			continue
		}

		trends = append(trends, models.TrendTopic{
			Keyword:     keyword,
			Volume:      len(matched),
			Sentiment:   averageSentiment(matched),
			Posts:       matched,
			LastUpdated: now,
		})
	}

	slices.SortStableFunc(trends, func(a, b models.TrendTopic) int {
		return b.Volume - a.Volume
	})

	if len(trends) > MAX_TRENDS {
		trends = trends[:MAX_TRENDS]
	}
	return trends
}

// Keywords lowercases text, drops punctuation and keeps non-stopwords of at
// least MIN_KEYWORD_LENGTH characters.
func Keywords(text string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(text), " ")

	var words []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) < MIN_KEYWORD_LENGTH {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		words = append(words, word)
	}
	return words
}

// averageSentiment averages the posts that carry a sentiment; none gives 0.
func averageSentiment(posts []models.Post) models.SentimentResult {
	var sum float64
	var scored int
	for _, post := range posts {
		if post.Sentiment != nil {
			sum += post.Sentiment.Score
			scored++
		}
	}

	var avg float64
	if scored > 0 {
		avg = sum / float64(scored)
	}
	return models.SentimentResult{
		Score:      avg,
		Label:      models.LabelFromScore(avg),
		Confidence: math.Abs(avg),
	}
}
