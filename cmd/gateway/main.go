// Code scaffolded in the teacher's goctl style. Safe to edit.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/gateway"
	"github.com/suleymanmyradov/trustgate/internal/handler"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

var configFile = flag.String("f", "etc/gateway.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	svcCtx, err := svc.NewServiceContext(c)
	if err != nil {
		logx.Must(err)
	}

	if err := seedDemoBackend(svcCtx); err != nil {
		logx.Errorf("seed demo backend registration: %v", err)
	}

	stop := make(chan struct{})
	go svcCtx.Revocation.Run(stop)
	go svcCtx.RateLimiter.Run(time.Minute, 10*time.Minute, stop)

	adminServer := rest.MustNewServer(c.RestConf, rest.WithCors("*"))
	handler.RegisterAdminHandlers(adminServer, svcCtx)

	ingress := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", c.Ingress.Host, c.Ingress.Port),
		Handler: gateway.New(svcCtx),
	}

	go func() {
		fmt.Printf("Starting admin API at %s:%d...\n", c.Host, c.Port)
		adminServer.Start()
	}()
	go func() {
		fmt.Printf("Starting ingress dispatch at %s...\n", ingress.Addr)
		if err := ingress.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Errorf("ingress server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	close(stop)
	adminServer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ingress.Shutdown(shutdownCtx); err != nil {
		logx.Errorf("ingress shutdown: %v", err)
	}
}
