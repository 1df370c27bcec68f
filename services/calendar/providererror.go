package calendar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"assistbackend/utils"
)

const maxRawErrorLength = 200

// providerErrorPayload covers the error envelopes Google endpoints return:
//
//	{"error": "invalid_grant", "error_description": "..."}   (OAuth style)
//	{"error": {"code": 404, "message": "Not Found"}}          (API style)
//	{"message": "..."}                                        (proxies, gateways)
type providerErrorPayload struct {
	Error            providerErrorField `json:"error"`
	ErrorDescription string             `json:"error_description"`
	Message          string             `json:"message"`
}

type providerErrorKind int

const (
	providerErrorAbsent providerErrorKind = iota
	providerErrorString
	providerErrorObject
)

// providerErrorField is the "error" member, which is either a string or an object
type providerErrorField struct {
	Kind    providerErrorKind
	Text    string
	Code    int
	Message string
	Status  string
}

func (f *providerErrorField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &f.Text); err != nil {
			return err
		}
		f.Kind = providerErrorString
	case '{':
		var object struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return err
		}
		f.Kind = providerErrorObject
		f.Code = object.Code
		f.Message = object.Message
		f.Status = object.Status
	}
	return nil
}

// parseProviderErrorMessage extracts a human readable message from an error response body
func parseProviderErrorMessage(statusCode int, body []byte) string {
	var payload providerErrorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		if message := payload.message(); message != "" {
			return message
		}
	}

	if raw := strings.TrimSpace(string(body)); raw != "" && !strings.HasPrefix(raw, "<") {
		return utils.TruncateText(raw, maxRawErrorLength)
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

func (p providerErrorPayload) message() string {
	switch p.Error.Kind {
	case providerErrorObject:
		if p.Error.Message != "" {
			return p.Error.Message
		}
		if p.Error.Status != "" {
			return p.Error.Status
		}
	case providerErrorString:
		if p.ErrorDescription != "" {
			return fmt.Sprintf("%s: %s", p.Error.Text, p.ErrorDescription)
		}
		return p.Error.Text
	}
	if p.ErrorDescription != "" {
		return p.ErrorDescription
	}
	return p.Message
}
