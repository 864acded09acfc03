package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPPageBuilder requests {baseURL}/q/{key} so the page is rendered and cached
// before it is shared.
type HTTPPageBuilder struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPageBuilder(baseURL string, timeout time.Duration) *HTTPPageBuilder {
	return &HTTPPageBuilder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *HTTPPageBuilder) BuildPage(ctx context.Context, quizSetKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/q/"+quizSetKey, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("page returned %s", resp.Status)
	}
	return nil
}
