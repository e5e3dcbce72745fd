package failover

import (
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response is kept for logging.
const maxErrorBody = 1024

// ReadBody drains resp and returns its body when the status is 200. Any
// other status becomes a *StatusError carrying the start of the body.
// limit caps a successful body; zero means unlimited.
func ReadBody(provider string, resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", provider, err)
	}
	return data, nil
}
