package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
)

// maxLoggedArgLen bounds string tool arguments in logs. Questions can be long.
const maxLoggedArgLen = 200

// sensitiveArgKeys are redacted from logged tool arguments. Data source
// configs passed through tools may carry credentials.
var sensitiveArgKeys = []string{"password", "secret", "token", "key", "credential", "config"}

// MCPRequestLogger logs JSON-RPC tool calls made to the MCP endpoint: the
// tool name and redacted arguments on the way in, success or the JSON-RPC
// error on the way out. A nil logger disables it.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var call rpcCall
			if err := json.Unmarshal(body, &call); err != nil {
				logger.Debug("MCP request is not a JSON-RPC object", zap.Error(err))
			}
			tool := call.Params.Name

			logger.Debug("MCP request",
				zap.String("method", call.Method),
				zap.String("tool", tool),
				zap.String("user_id", r.Header.Get(UserIDHeader)),
				zap.Any("arguments", redactArguments(call.Params.Arguments)),
			)

			recorder := &bodyRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			elapsed := time.Since(start)

			var reply rpcReply
			if err := json.Unmarshal(recorder.body.Bytes(), &reply); err != nil {
				// streamed (SSE) replies are not a single JSON document
				return
			}
			switch {
			case reply.Error != nil:
				logger.Debug("MCP response error",
					zap.String("tool", tool),
					zap.Int("error_code", reply.Error.Code),
					zap.String("error_message", reply.Error.Message),
					zap.Duration("duration", elapsed),
				)
			case reply.Result.IsError:
				logger.Debug("MCP tool error",
					zap.String("tool", tool),
					zap.Duration("duration", elapsed),
				)
			default:
				logger.Debug("MCP response success",
					zap.String("tool", tool),
					zap.Duration("duration", elapsed),
				)
			}
		})
	}
}

type rpcCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcReply struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// bodyRecorder tees the response body so the reply can be inspected after
// the handler returns.
type bodyRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// redactArguments hides sensitive values and truncates long strings.
func redactArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveArg(k) {
			out[k] = logging.RedactedText
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = logging.TruncateString(s, maxLoggedArgLen)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveArg(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveArgKeys {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
