package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// FetchToken asks the ledger to mint a user token with the shared service
// key, the same exchange the API performs on a user's behalf.
func FetchToken(ctx context.Context, httpClient *http.Client, ledgerURL, serviceKey, userID, locale string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	body, _ := json.Marshal(map[string]string{"userId": userID, "locale": locale})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(ledgerURL, "/")+"/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", serviceKey)
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("apiclient: fetch token: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &APIError{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(raw, "error.code").String(),
			Message: gjson.GetBytes(raw, "error.message").String(),
		}
	}
	token := gjson.GetBytes(raw, "token").String()
	if token == "" {
		return "", fmt.Errorf("apiclient: ledger returned no token")
	}
	return token, nil
}
