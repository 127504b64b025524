package source

import (
	"context"
	"net/http"
	"time"
)

type RemoteSource struct {
	url        string
	httpClient *http.Client
	userAgent  string
}

func NewRemoteSource(url string, httpClient *http.Client, userAgent string) *RemoteSource {
	return &RemoteSource{
		url:        url,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (s *RemoteSource) Name() string {
	return "remote"
}

func (s *RemoteSource) URL() string {
	return s.url
}

func (s *RemoteSource) Fetch(ctx context.Context) ([]byte, error) {
	return FetchURL(ctx, s.httpClient, s.url, s.userAgent, 30*time.Second)
}
