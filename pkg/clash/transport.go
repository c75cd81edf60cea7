package clash

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
)

// response is a successful (2xx) HTTP exchange
type response struct {
	status int
	header http.Header
	body   []byte
}

// doRequest performs one HTTP exchange. Non-2xx statuses are returned as
// classified errors; the body is never decoded here.
func doRequest(ctx context.Context, httpClient *http.Client, logger *zap.Logger, method, url string, header http.Header, reqBody interface{}) (*response, error) {
	// Marshal request body
	var body io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return nil, decodeError(err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, wrapError(KindBadURL, err)
	}

	// Set headers
	for name, values := range header {
		for _, v := range values {
			if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(v) {
				return nil, newError(KindInvalidHeader, "invalid value for header "+name)
			}
			req.Header.Add(name, v)
		}
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// Execute request, never retried
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return nil, requestError(err)
	}
	defer resp.Body.Close()

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(err)
	}

	logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if apiErr := Classify(resp.StatusCode, respBody); apiErr != nil {
		return nil, apiErr
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   respBody,
	}, nil
}

// decodeBody parses a successful response body into result
func decodeBody(body []byte, result interface{}) error {
	if err := json.Unmarshal(body, result); err != nil {
		return decodeError(err)
	}
	return nil
}
