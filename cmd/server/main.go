// chat-proxy relays chat conversations from the browser UI to OpenAI.
//
// Usage:
//
//	# Run the HTTP server
//	chat-proxy serve --config config.yaml
//
//	# Run as a Lambda function URL handler
//	chat-proxy lambda
package main

func main() {
	Execute()
}
