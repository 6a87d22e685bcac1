package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// requireAuth resolves the bearer token to a user and stores it in the
// request context.
func (api *TaskAPI) requireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, err := api.auth.Authorize(ctx.Request.Context(), ctx.GetHeader("Authorization"))
		if err != nil {
			api.respondError(ctx, err)
			return
		}
		ctx.Set(userKey, user)
		ctx.Next()
	}
}

func currentUser(ctx *gin.Context) *models.User {
	return ctx.MustGet(userKey).(*models.User)
}

// CORS answers preflight requests and tags responses for allowed origins.
// With no origins configured it does nothing.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if len(allowed) == 0 || origin == "" || !(allowed[origin] || allowed["*"]) {
			ctx.Next()
			return
		}

		h := ctx.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Encoding")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		addVary(h, "Origin")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (b *gzipBody) Close() error {
	gzErr := b.Reader.Close()
	if err := b.body.Close(); err != nil {
		return err
	}
	return gzErr
}

// GzipRequestDecompress transparently inflates gzip encoded request bodies.
func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(strings.ToLower(ctx.GetHeader("Content-Encoding")), "gzip") {
			ctx.Next()
			return
		}
		gr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": errors.Message(errors.ErrInvalidGzipRequest)})
			return
		}
		ctx.Request.Body = &gzipBody{Reader: gr, body: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

const minCompressSize = 1024

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// bufferedWriter holds the response body until the handler chain finishes
// so the compression decision can be made on the whole payload.
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	if w.buf.Len() < minCompressSize || !compressible(w.Header(), w.Status()) {
		_, err := w.ResponseWriter.Write(w.buf.Bytes())
		return err
	}

	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")

	gw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(gw)
	gw.Reset(w.ResponseWriter)
	if _, err := gw.Write(w.buf.Bytes()); err != nil {
		return errors.ErrGzipCompressionFailed
	}
	if err := gw.Close(); err != nil {
		return errors.ErrGzipCompressionFailed
	}
	return nil
}

// GzipResponseCompress compresses textual responses of at least 1KB for
// clients that accept gzip.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead ||
			!strings.Contains(strings.ToLower(ctx.GetHeader("Accept-Encoding")), "gzip") {
			ctx.Next()
			return
		}
		addVary(ctx.Writer.Header(), "Accept-Encoding")

		bw := &bufferedWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = bw
		ctx.Next()
		ctx.Writer = bw.ResponseWriter

		if err := bw.flush(); err != nil {
			_ = ctx.Error(err)
		}
	}
}

func compressible(h http.Header, status int) bool {
	if status == http.StatusNoContent || status == http.StatusNotModified ||
		status == http.StatusPartialContent || (status >= 300 && status < 400) {
		return false
	}
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	for _, prefix := range []string{"application/json", "application/xml", "application/javascript", "text/"} {
		if strings.HasPrefix(ct, prefix) {
			return !strings.HasPrefix(ct, "text/event-stream")
		}
	}
	return false
}

func addVary(h http.Header, value string) {
	vary := h.Get("Vary")
	switch {
	case vary == "":
		h.Set("Vary", value)
	case !strings.Contains(vary, value):
		h.Set("Vary", vary+", "+value)
	}
}
