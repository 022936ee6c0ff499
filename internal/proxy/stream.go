package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Data stream protocol understood by the browser chat UI: one part per line,
// "<code>:<json>\n".
const (
	partText   = '0'
	partError  = '3'
	partFinish = 'd'

	DataStreamHeader = "X-Vercel-AI-Data-Stream"
)

type finishPart struct {
	FinishReason string `json:"finishReason"`
}

type dataStreamWriter struct {
	w gin.ResponseWriter
}

// begin commits the 200 status and stream headers. Nothing about the response
// can change after this.
func (d *dataStreamWriter) begin() {
	h := d.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set(DataStreamHeader, "v1")
	d.w.WriteHeader(http.StatusOK)
	d.w.Flush()
}

func (d *dataStreamWriter) part(code byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(d.w, "%c:%s\n", code, b); err != nil {
		return err
	}
	d.w.Flush()
	return nil
}

func (d *dataStreamWriter) writeText(chunk string) error { return d.part(partText, chunk) }

func (d *dataStreamWriter) writeError(msg string) error { return d.part(partError, msg) }

func (d *dataStreamWriter) writeFinish(reason string) error {
	return d.part(partFinish, finishPart{FinishReason: reason})
}
