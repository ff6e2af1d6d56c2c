// Package youtube searches videos and looks up their metadata with the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/perbu/videoqa/pkg/fetch"
	"github.com/perbu/videoqa/pkg/retry"
)

const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Video is the metadata shown for a search hit.
type Video struct {
	VideoID          string `json:"videoId"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Channel          string `json:"channel"`
	Thumbnail        string `json:"thumbnail"`
	Duration         string `json:"duration"` // ISO 8601, e.g. PT12M3S
	CaptionAvailable bool   `json:"captionAvailable"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	policy  retry.Policy
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: API key not set")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	policy := retry.DefaultPolicy()
	policy.Retryable = fetch.Retryable
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		policy:  policy,
	}, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// Search returns the IDs of captioned videos matching query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"part":          {"snippet"},
		"q":             {query},
		"type":          {"video"},
		"videoCaptions": {"closedCaption"},
		"maxResults":    {strconv.Itoa(maxResults)},
	}
	var out searchResponse
	if err := c.get(ctx, "/search", params, &out); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	ids := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
			Caption  string `json:"caption"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Videos looks up metadata for the given IDs in one request.
func (c *Client) Videos(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return []Video{}, nil
	}
	params := url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(ids, ",")},
	}
	var out videosResponse
	if err := c.get(ctx, "/videos", params, &out); err != nil {
		return nil, fmt.Errorf("youtube videos: %w", err)
	}
	videos := make([]Video, 0, len(out.Items))
	for _, item := range out.Items {
		videos = append(videos, Video{
			VideoID:          item.ID,
			Title:            item.Snippet.Title,
			Description:      item.Snippet.Description,
			Channel:          item.Snippet.ChannelTitle,
			Thumbnail:        item.Snippet.Thumbnails.Medium.URL,
			Duration:         item.ContentDetails.Duration,
			CaptionAvailable: item.ContentDetails.Caption == "true",
		})
	}
	return videos, nil
}

// get sends the API key as a header so it never shows up in URLs quoted by
// transport errors.
func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	u := c.baseURL + path + "?" + params.Encode()
	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		return fetch.DoJSON(c.http, req, 0, dst)
	})
}
