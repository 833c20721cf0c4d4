package reporting

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Response is one decoded reporting API payload. The API contract guarantees
// a "result" field; "error" marks an application-level failure with a
// "message" alongside it.
type Response map[string]interface{}

// IsError reports whether the payload is an application-level error.
func (r Response) IsError() bool {
	result, _ := r["result"].(string)
	return result == "error"
}

// Message returns the error message, empty when absent.
func (r Response) Message() string {
	msg, _ := r["message"].(string)
	return msg
}

// errorResponse synthesizes the error payload shape the API itself uses, for
// failures that never produced a usable body.
func errorResponse(message string) Response {
	return Response{"result": "error", "message": message}
}

// bodyExcerptLimit bounds how much of an HTTP error body makes it into a
// synthesized message.
const bodyExcerptLimit = 100

func truncateBody(body []byte) string {
	if len(body) > bodyExcerptLimit {
		return string(body[:bodyExcerptLimit])
	}
	return string(body)
}

// encodeEntries serializes a response array for the cache: JSON, gzipped,
// base64-wrapped so the cache can store it as a plain string.
func encodeEntries(entries []Response) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to marshal responses: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress responses: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress responses: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeEntries is the inverse of encodeEntries. Any failure means the cache
// entry is unusable and the caller treats it as a miss.
func decodeEntries(raw string) ([]Response, error) {
	compressed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached responses: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cached responses: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cached responses: %w", err)
	}
	var entries []Response
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached responses: %w", err)
	}
	return entries, nil
}
