package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
)

// doJSON performs one gateway round trip and decodes the JSON response
// into out. Timeouts surface as ErrTimeout (retryable by the caller), 5xx
// as ErrUpstream, 4xx as ErrGatewayRejected.
func doJSON(ctx context.Context, client *http.Client, method, url, bearer string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			log.Printf("layer=adapter component=provider method=doJSON url=%s err=%v", url, err)
			return errors.Join(ErrTimeout, err)
		}
		log.Printf("layer=adapter component=provider method=doJSON url=%s err=%v", url, err)
		return errors.Join(ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrUpstream, err)
	}

	switch {
	case resp.StatusCode >= 500:
		log.Printf("layer=adapter component=provider method=doJSON url=%s status=%d", url, resp.StatusCode)
		return ErrUpstream
	case resp.StatusCode >= 400:
		log.Printf("layer=adapter component=provider method=doJSON url=%s status=%d", url, resp.StatusCode)
		return ErrGatewayRejected
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrUpstream, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
