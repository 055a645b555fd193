// Package notifier delivers short customer-facing text messages through an
// external SMS gateway. Delivery is strictly best-effort: callers fire a
// notification after their own work is committed, log the outcome and move on.
// A failed send never rolls anything back.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"restaurant_backend/pkg/utils"
)

// Notifier sends a text message to a customer phone number. The boolean return
// reports delivery acceptance; callers must not treat false as an error.
type Notifier interface {
	Send(phone, message string) bool
}

// sendTimeout bounds one gateway round trip so a slow gateway cannot stall
// request handling.
const sendTimeout = 5 * time.Second

// HTTPNotifier posts notifications as JSON to a configured gateway endpoint.
type HTTPNotifier struct {
	gatewayURL string
	token      string
	httpClient *http.Client
}

// NewHTTPNotifier creates a gateway-backed notifier. An empty gatewayURL yields
// a disabled notifier whose Send always reports false.
func NewHTTPNotifier(gatewayURL, token string) *HTTPNotifier {
	return &HTTPNotifier{
		gatewayURL: gatewayURL,
		token:      token,
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
	}
}

type gatewayPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Send posts the message to the gateway. Every failure path logs and returns
// false; no error escapes to the caller.
func (n *HTTPNotifier) Send(phone, message string) bool {
	if n.gatewayURL == "" {
		utils.LogDebug("HTTPNotifier.Send: gateway not configured, dropping notification", map[string]interface{}{
			"phone": phone,
		})
		return false
	}

	body, err := json.Marshal(gatewayPayload{Phone: phone, Message: message})
	if err != nil {
		utils.LogWarn(err, "HTTPNotifier.Send: marshalling payload")
		return false
	}

	req, err := http.NewRequest(http.MethodPost, n.gatewayURL, bytes.NewReader(body))
	if err != nil {
		utils.LogWarn(err, "HTTPNotifier.Send: building gateway request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		utils.LogWarn(err, "HTTPNotifier.Send: calling notification gateway")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		utils.LogWarn(fmt.Errorf("gateway returned status %d", resp.StatusCode), "HTTPNotifier.Send: delivery rejected")
		return false
	}

	utils.LogDebug("HTTPNotifier.Send: notification delivered", map[string]interface{}{
		"phone": phone,
	})
	return true
}
