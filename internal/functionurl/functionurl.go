// Package functionurl runs the router behind a Lambda function URL in
// RESPONSE_STREAM invoke mode, on top of aws-lambda-go's lambdaurl bridge.
package functionurl

import (
	"net"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdaurl"
)

// Start serves function URL invocations with handler until the runtime stops
// the process. onShutdown runs when the runtime sends SIGTERM.
func Start(handler http.Handler, onShutdown func()) {
	lambdaurl.Start(Handler(handler), lambda.WithEnableSIGTERM(onShutdown))
}

// Handler fits next to the request and writer lambdaurl.Wrap produces. The
// bridge sets RemoteAddr to the bare source IP, which gin cannot parse, and
// its writer has no Flush, which gin's Flush requires.
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.RemoteAddr != "" {
			if _, _, err := net.SplitHostPort(r.RemoteAddr); err != nil {
				r.RemoteAddr = net.JoinHostPort(r.RemoteAddr, "0")
			}
		}
		if _, ok := w.(http.Flusher); !ok {
			w = flushWriter{w}
		}
		next.ServeHTTP(w, r)
	})
}

type flushWriter struct {
	http.ResponseWriter
}

// Flush does nothing: every Write already goes straight to the runtime.
func (flushWriter) Flush() {}
