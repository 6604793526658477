package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestAudit is the structured log entry emitted per mutating request
type RequestAudit struct {
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"requestId"`
	ActorID    string            `json:"actorId"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	StatusCode int               `json:"statusCode"`
	Duration   time.Duration     `json:"duration"`
	ClientIP   string            `json:"clientIp"`
	UserAgent  string            `json:"userAgent"`
	Success    bool              `json:"success"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditMiddleware logs every custody request with sensitive fields masked
func AuditMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	entryLogger := logger.WithField("component", "middleware.audit")

	return func(c *gin.Context) {
		start := time.Now()

		var requestBody []byte
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		entry := &RequestAudit{
			Timestamp:  start,
			RequestID:  c.GetString("request_id"),
			ActorID:    c.GetString("actorId"),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: c.Writer.Status(),
			Duration:   time.Since(start),
			ClientIP:   c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Success:    c.Writer.Status() < 400,
		}
		entry.Metadata = extractRequestMetadata(requestBody)

		entryLogger.WithFields(logrus.Fields{
			"requestId":  entry.RequestID,
			"actorId":    entry.ActorID,
			"method":     entry.Method,
			"path":       entry.Path,
			"statusCode": entry.StatusCode,
			"durationMs": entry.Duration.Milliseconds(),
			"clientIp":   entry.ClientIP,
			"success":    entry.Success,
			"metadata":   entry.Metadata,
		}).Info("Request audit")
	}
}

// SensitiveFields are request fields that must never reach logs
var SensitiveFields = []string{
	"pin",
	"pan",
	"card_number",
	"cvv",
	"cvc",
	"expiry",
	"credentials",
	"password",
	"secret",
}

// extractRequestMetadata pulls top-level request fields for the audit log,
// masking anything sensitive
func extractRequestMetadata(body []byte) map[string]string {
	if len(body) == 0 {
		return nil
	}

	var fields map[string]interface{}
	if json.Unmarshal(body, &fields) != nil {
		return nil
	}

	metadata := make(map[string]string, len(fields))
	for k, v := range fields {
		if isSensitiveField(k) {
			metadata[k] = "***MASKED***"
			continue
		}
		switch val := v.(type) {
		case string:
			metadata[k] = val
		case float64:
			metadata[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			metadata[k] = strconv.FormatBool(val)
		}
	}
	return metadata
}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, sf := range SensitiveFields {
		if lower == sf || strings.Contains(lower, sf) {
			return true
		}
	}
	return false
}
