// Package bpfast serves pipelines with valyala/fasthttp.
package bpfast

import (
	"bytes"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/interceptor"
	"github.com/valyala/fasthttp"
)

var remoteAddrKey = bpipe.NewKey[net.Addr]("remote_addr")

// Handler adapts a pipeline into a fasthttp request handler. The request context is the
// fasthttp context, which is cancelled when the server shuts down.
func Handler(p *bpipe.Pipeline, logs bpipe.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		hdr := make(http.Header)
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			key := string(k)
			hdr[key] = append(hdr[key], string(v))
		})

		query, err := url.ParseQuery(string(ctx.QueryArgs().QueryString()))
		if err != nil {
			ctx.Error(http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		req := bpipe.NewRequest(ctx, string(ctx.Method()), string(ctx.Path()), query, hdr,
			bytes.NewReader(ctx.PostBody()))
		bpipe.Set(req, remoteAddrKey, ctx.RemoteAddr())

		resp := p.Serve(req)

		ctx.Response.Header.Del("Content-Type")
		for k, vals := range resp.Header() {
			for _, v := range vals {
				ctx.Response.Header.Add(k, v)
			}
		}
		ctx.SetStatusCode(resp.Status())

		if ctx.IsHead() {
			return
		}
		if _, err := resp.WriteTo(ctx); err != nil {
			logs.LogWriteError(err)
		}
	}
}

// RemoteAddr returns the address of the fasthttp connection the request came in on.
func RemoteAddr(r *bpipe.Request) (net.Addr, bool) {
	return bpipe.Get(r, remoteAddrKey)
}

// ClientIP is an [interceptor.KeyFunc] for requests served by [Handler]. Forwarded addresses
// take precedence, as with [interceptor.ClientIP].
func ClientIP(r *bpipe.Request) string {
	if ip := interceptor.ClientIP(r); ip != "" {
		return ip
	}

	addr, ok := RemoteAddr(r)
	if !ok || addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}

// ServerConfig holds the fasthttp server limits.
type ServerConfig struct {
	Name         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int
}

// NewServer creates a fasthttp server for the pipeline.
func NewServer(p *bpipe.Pipeline, logs bpipe.Logger, cfg ServerConfig) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            Handler(p, logs),
		Name:               cfg.Name,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
		MaxRequestBodySize: cfg.MaxBodyBytes,
	}
}
