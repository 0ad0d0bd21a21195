package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"scamwatch/internal/domain"
)

// SocialAdapter polls a scraper API for account profiles and recent posts.
// Handles are queued on the watchlist by the pipeline when a DEX listing
// links to an account. A suspended or deleted account still produces a
// profile observation with Available=false; that absence is itself a signal.
type SocialAdapter struct {
	apiURL   string
	apiToken string
	client   *http.Client
	logger   *zap.Logger

	watchlist *Watchlist
	maxPosts  int
}

// SocialAdapterOptions configures NewSocialAdapter.
type SocialAdapterOptions struct {
	APIURL    string
	APIToken  string
	Watchlist *Watchlist
	MaxPosts  int // recent posts fetched per account, default 20
	Logger    *zap.Logger
}

// NewSocialAdapter creates the social account adapter.
func NewSocialAdapter(opts SocialAdapterOptions) *SocialAdapter {
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &SocialAdapter{
		apiURL:    opts.APIURL,
		apiToken:  opts.APIToken,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    opts.Logger,
		watchlist: opts.Watchlist,
		maxPosts:  opts.MaxPosts,
	}
}

// Name identifies the adapter instance.
func (a *SocialAdapter) Name() string { return "social" }

// Source returns the feed this adapter connects to.
func (a *SocialAdapter) Source() domain.Source { return domain.SourceTwitter }

type profileResponse struct {
	Status string `json:"status"` // "active", "suspended", "not_found"
	Data   struct {
		Name           string `json:"name"`
		FollowersCount int64  `json:"followers_count"`
		FriendsCount   int64  `json:"friends_count"`
		StatusesCount  int64  `json:"statuses_count"`
		CreatedAt      int64  `json:"created_at"` // Unix seconds
	} `json:"data"`
}

type timelineResponse struct {
	Tweets []struct {
		ID            string `json:"id_str"`
		Text          string `json:"full_text"`
		CreatedAt     int64  `json:"created_at"` // Unix seconds
		FavoriteCount int64  `json:"favorite_count"`
		ReplyCount    int64  `json:"reply_count"`
		RetweetCount  int64  `json:"retweet_count"`
		ViewCount     int64  `json:"view_count"`
		Entities      struct {
			UserMentions []struct {
				ScreenName string `json:"screen_name"`
			} `json:"user_mentions"`
		} `json:"entities"`
	} `json:"tweets"`
}

// Fetch pulls profile and timeline data for up to limit queued handles.
func (a *SocialAdapter) Fetch(ctx context.Context, limit int) ([]Record, error) {
	handles := a.watchlist.Take(limit)
	if len(handles) == 0 {
		return nil, nil
	}

	var records []Record
	for _, handle := range handles {
		recs, err := a.fetchAccount(ctx, handle)
		if err != nil {
			a.watchlist.Add(handle)
			return records, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (a *SocialAdapter) fetchAccount(ctx context.Context, handle string) ([]Record, error) {
	now := time.Now().UnixMilli()

	profile, err := a.fetchProfile(ctx, handle)
	if err != nil {
		return nil, err
	}

	profileRec := Record{
		RawID:      "profile:" + handle + ":" + strconv.FormatInt(now/86_400_000, 10),
		EntityKey:  handle,
		ObservedAt: now,
		Payload:    *profile,
	}
	if !profile.Available {
		a.logger.Info("account unavailable", zap.String("handle", handle))
		return []Record{profileRec}, nil
	}

	posts, err := a.fetchTimeline(ctx, handle)
	if err != nil {
		// Profile alone is still usable evidence
		a.logger.Warn("timeline fetch failed", zap.String("handle", handle), zap.Error(err))
		return []Record{profileRec}, nil
	}

	records := make([]Record, 0, len(posts)+1)
	records = append(records, profileRec)
	records = append(records, posts...)
	return records, nil
}

func (a *SocialAdapter) fetchProfile(ctx context.Context, handle string) (*domain.SocialProfile, error) {
	var parsed profileResponse
	if err := a.get(ctx, "/profile", handle, &parsed); err != nil {
		return nil, err
	}

	switch parsed.Status {
	case "suspended", "not_found":
		return &domain.SocialProfile{Available: false}, nil
	case "active":
		return &domain.SocialProfile{
			DisplayName:    parsed.Data.Name,
			FollowerCount:  parsed.Data.FollowersCount,
			FollowingCount: parsed.Data.FriendsCount,
			PostCount:      parsed.Data.StatusesCount,
			AccountCreated: parsed.Data.CreatedAt * 1000,
			Available:      true,
		}, nil
	default:
		return nil, Errorf(KindMalformedResponse, a.Source(),
			"unknown profile status %q for %s", parsed.Status, handle)
	}
}

func (a *SocialAdapter) fetchTimeline(ctx context.Context, handle string) ([]Record, error) {
	var parsed timelineResponse
	if err := a.get(ctx, "/timeline", handle, &parsed); err != nil {
		return nil, err
	}

	n := len(parsed.Tweets)
	if n > a.maxPosts {
		n = a.maxPosts
	}
	records := make([]Record, 0, n)
	for _, tw := range parsed.Tweets[:n] {
		mentions := make([]string, 0, len(tw.Entities.UserMentions))
		for _, m := range tw.Entities.UserMentions {
			mentions = append(mentions, m.ScreenName)
		}
		records = append(records, Record{
			RawID:      "post:" + tw.ID,
			EntityKey:  handle,
			ObservedAt: time.Now().UnixMilli(),
			Payload: domain.SocialPost{
				Text:          tw.Text,
				PostedAt:      tw.CreatedAt * 1000,
				FavoriteCount: tw.FavoriteCount,
				ReplyCount:    tw.ReplyCount,
				RetweetCount:  tw.RetweetCount,
				ViewCount:     tw.ViewCount,
				Mentions:      mentions,
			},
		})
	}
	return records, nil
}

func (a *SocialAdapter) get(ctx context.Context, path, handle string, out any) error {
	q := url.Values{}
	q.Set("screen_name", handle)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return NewError(KindMalformedResponse, a.Source(), err)
	}
	if a.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return FromFetchErr(a.Source(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Errorf(ClassifyHTTPStatus(resp.StatusCode), a.Source(),
			"scraper returned status %d for %s%s", resp.StatusCode, path, handle)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FromFetchErr(a.Source(), err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewError(KindMalformedResponse, a.Source(), fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

var _ Adapter = (*SocialAdapter)(nil)
