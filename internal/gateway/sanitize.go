package gateway

import (
	"encoding/json"
	"strings"
)

// sensitiveFields are masked before request/response bodies reach the logs.
var sensitiveFields = []string{
	"api_key",
	"api-key",
	"authorization",
	"card_number",
	"card_cvc",
	"card_exp_month",
	"card_exp_year",
	"client_secret",
	"password",
	"payment_hash_key",
	"secret",
	"token",
}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// sanitizeBody masks secret-bearing fields in a JSON body so the API log
// event can be emitted safely. Non-JSON bodies are passed through unless they
// appear to contain sensitive material.
func sanitizeBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		bodyStr := string(body)
		for _, field := range sensitiveFields {
			if strings.Contains(strings.ToLower(bodyStr), field) {
				return "[FILTERED]"
			}
		}
		return bodyStr
	}

	masked, err := json.Marshal(maskSensitive(data))
	if err != nil {
		return "[FILTERED]"
	}
	return string(masked)
}

func maskSensitive(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		masked := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitiveField(key) {
				masked[key] = "[FILTERED]"
			} else {
				masked[key] = maskSensitive(value)
			}
		}
		return masked
	case []interface{}:
		masked := make([]interface{}, len(v))
		for i, item := range v {
			masked[i] = maskSensitive(item)
		}
		return masked
	default:
		return v
	}
}
